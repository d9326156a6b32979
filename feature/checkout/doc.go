// Package checkout manages the local Archipelago source checkout and runs
// its scripts.
//
// # Layout
//
// The checkout is a plain git clone of the Archipelago repository with a
// virtualenv at .venv inside it. All scripts run with the venv interpreter,
// the checkout as working directory and SKIP_REQUIREMENTS_UPDATE=1 so
// nothing re-resolves pip requirements on every invocation. The one
// exception is ModuleUpdate.py during Init, which exists to do exactly
// that.
//
// # Operations
//
// Update fast-forwards the checkout to its upstream, but only when git
// status reports it clean. It finishes with an Init so the venv matches the
// new revision.
//
// Init builds the venv when missing, answers yes to ModuleUpdate.py's
// install prompts and imports NetUtils.py once to pay its first-run cost up
// front.
//
// Generate stages player yaml files into a scratch Players directory, runs
// Generate.py and delivers the single resulting zip either verbatim or
// unpacked into an empty directory.
package checkout
