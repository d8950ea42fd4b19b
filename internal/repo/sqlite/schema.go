package sqlite

// Timestamps are RFC 3339 text written by the store, not by SQLite defaults.
const schema = `
CREATE TABLE IF NOT EXISTS websites (
  site               TEXT PRIMARY KEY,
  has_authentication INTEGER NOT NULL DEFAULT 0,
  status             TEXT NOT NULL DEFAULT 'unknown',
  date_created       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS authentication_schemes (
  site            TEXT PRIMARY KEY REFERENCES websites(site) ON DELETE CASCADE,
  kind            TEXT NOT NULL CHECK (kind IN ('session', 'token', 'bearer')),
  session_cookies TEXT,
  api_token       TEXT,
  bearer_token    TEXT,
  date_created    TEXT NOT NULL,
  date_modified   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS historical_stats (
  site            TEXT PRIMARY KEY REFERENCES websites(site) ON DELETE CASCADE,
  uptime_counts   INTEGER NOT NULL DEFAULT 0 CHECK (uptime_counts >= 0),
  downtime_counts INTEGER NOT NULL DEFAULT 0 CHECK (downtime_counts >= 0),
  date_created    TEXT NOT NULL,
  date_modified   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS people (
  email_address TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS notify_groups (
  name         TEXT PRIMARY KEY,
  site         TEXT NOT NULL REFERENCES websites(site) ON DELETE CASCADE,
  date_created TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notify_group_emails (
  group_name    TEXT NOT NULL REFERENCES notify_groups(name) ON DELETE CASCADE,
  email_address TEXT NOT NULL REFERENCES people(email_address) ON DELETE CASCADE,
  PRIMARY KEY (group_name, email_address)
);

CREATE INDEX IF NOT EXISTS idx_notify_groups_site ON notify_groups (site);
`
