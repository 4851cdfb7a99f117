// Package coxswain provides a unidirectional state-management runtime:
// a store that owns application state, runs actions through a reducer,
// and executes the resulting operation trees under a cancellation-scoped
// scheduler.
//
// The core runtime is in package 'core', scripted reducers in 'script',
// and a demo daemon in 'cmd/coxd'.
package coxswain
