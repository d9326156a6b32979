// Package execx runs external programs (git, python, docker) behind a small
// Runner interface.
//
// Keeping every subprocess call behind one chokepoint has two payoffs: the
// features that shell out are testable with the mock in mocks/, and there is
// exactly one place that decides environment, working directory and output
// capture rules. Nothing outside this package should import os/exec.
package execx
