// Package tracker wraps the Cheese Tracker's docker compose stack.
//
// Every operation resolves the compose flavor first: `docker compose` when
// the plugin probe answers, the standalone `docker-compose` otherwise. The
// configured compose file is always passed with -f and the project name,
// when set, with -p, so the commands behave the same from any working
// directory.
package tracker
