package postgres

const schemaSQL = `
CREATE TABLE IF NOT EXISTS websites (
  site               TEXT PRIMARY KEY,
  has_authentication BOOLEAN NOT NULL DEFAULT FALSE,
  status             TEXT NOT NULL DEFAULT 'unknown',
  date_created       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS authentication_schemes (
  site            TEXT PRIMARY KEY REFERENCES websites(site) ON DELETE CASCADE,
  kind            TEXT NOT NULL CHECK (kind IN ('session', 'token', 'bearer')),
  session_cookies TEXT NULL,
  api_token       TEXT NULL,
  bearer_token    TEXT NULL,
  date_created    TIMESTAMPTZ NOT NULL DEFAULT now(),
  date_modified   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS historical_stats (
  site            TEXT PRIMARY KEY REFERENCES websites(site) ON DELETE CASCADE,
  uptime_counts   BIGINT NOT NULL DEFAULT 0 CHECK (uptime_counts >= 0),
  downtime_counts BIGINT NOT NULL DEFAULT 0 CHECK (downtime_counts >= 0),
  date_created    TIMESTAMPTZ NOT NULL DEFAULT now(),
  date_modified   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS people (
  email_address TEXT PRIMARY KEY,
  date_created  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notify_groups (
  name         TEXT PRIMARY KEY,
  site         TEXT NOT NULL REFERENCES websites(site) ON DELETE CASCADE,
  date_created TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notify_group_emails (
  group_name    TEXT NOT NULL REFERENCES notify_groups(name) ON DELETE CASCADE,
  email_address TEXT NOT NULL REFERENCES people(email_address) ON DELETE CASCADE,
  PRIMARY KEY (group_name, email_address)
);

CREATE INDEX IF NOT EXISTS idx_notify_groups_site ON notify_groups (site);
`
