// Package config loads the runtime configuration of the portfolio tools.
//
// Values are layered in this order, later sources winning:
//
//  1. Built-in defaults (Default)
//  2. An optional YAML file
//  3. A .env file, loaded into the process environment without overriding
//     variables that are already set
//  4. PORTFOLIO_ environment variables, with a double underscore separating
//     nested keys (PORTFOLIO_DATABASE__PATH sets database.path)
//
// The merged result is validated with struct tags before it is returned.
package config
