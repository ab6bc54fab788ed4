// Package stores provides the SQLite persistence layer for the portfolio bot.
// It owns four tables (projects, skills, status, project_skills), their schema
// lifecycle, and parameterized CRUD operations. Every call opens its own
// short-lived connection and closes it before returning.
package stores
