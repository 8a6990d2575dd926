// Package fakes provides test doubles for keyrotator interfaces.
//
// This package contains fake implementations of the directory, schedule
// store, and notifier interfaces that allow unit testing of the rotation
// core without real service dependencies. Fakes are manually implemented
// (not generated) to provide precise control over test behavior.
//
// Usage:
//
//	dir := fakes.NewFakeDirectory()
//	dir.Principals = []string{"alice"}
//	dir.Keys["alice"] = []directory.Credential{{ID: "AKIAOLD", AgeDays: 90}}
//	// Wire dir into a Coordinator and assert on dir.CreateKeyCalls...
package fakes
