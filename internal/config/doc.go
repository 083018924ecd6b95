// Package config provides configuration types and loading for habitat.
//
// # Configuration Files
//
// The package handles two kinds of configuration:
//
//   - Habitat: a habitat definition in YAML, passed on the command line
//   - Settings: host preferences in <configDir>/settings.toml
//
// # Habitat Definitions
//
//	name: demo
//	image: ubuntu:22.04
//	container:
//	  user: dev
//	  workdir: /src
//	env:
//	  - EDITOR=vim
//	users:
//	  - name: dev
//	    sudo: true
//	files:
//	  - src: dotfiles/.bashrc
//	    dest: /home/dev/.bashrc
//	repos:
//	  - url: https://github.com/example/app.git
//	    path: /src/app
//	setup:
//	  root: ["apt-get update && apt-get install -y git"]
//	  user: ["make -C /src/app deps"]
//	verify:
//	  - test -d /src/app
//	phases:
//	  setup:
//	    timeout: 20m
//
// PhaseSpecs expands a habitat into the fixed phase sequence
// base, users, env, workdir, files, repos, setup, verify. File sources are
// resolved inside the habitat directory and may not escape it.
//
// # Settings
//
//	engine = "podman"
//	stage_timeout = "10m"
//	keep_failed = true
//
// A missing settings file yields DefaultSettings.
//
// # Queries
//
// QueryFile reads a single value from any YAML file using dotted paths
// with list indexes, e.g. "repos[0].url".
package config
