package db

const schema = `
CREATE TABLE IF NOT EXISTS tools (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    name              TEXT NOT NULL UNIQUE CHECK(length(name) BETWEEN 1 AND 100),
    description       TEXT NOT NULL CHECK(length(description) > 0),
    handler_name      TEXT NOT NULL CHECK(length(handler_name) BETWEEN 1 AND 100),
    parameters_schema TEXT NOT NULL DEFAULT '{}',
    is_active         INTEGER NOT NULL DEFAULT 1 CHECK(is_active IN (0, 1)),
    created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tools_active ON tools(is_active);

CREATE TRIGGER IF NOT EXISTS trg_tools_updated_at
AFTER UPDATE ON tools
FOR EACH ROW
BEGIN
    UPDATE tools SET updated_at = datetime('now') WHERE id = NEW.id;
END;
`
