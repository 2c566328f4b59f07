// Package testutil provides shared helpers for meshflow tests.
//
// Subpackages:
//
//   - testutil/mocks holds a scripted LLM provider that answers each
//     pipeline stage with a canned reply and records every call.
//   - testutil/fixtures holds the canned stage payloads the scripted
//     provider replies with, describing a small wooden stool.
//
// The helpers in this package cover test contexts and JSON plumbing:
//
//	ctx := testutil.TestContext(t)
//	provider := mocks.NewScriptedProvider()
//	res, err := client.Generate(ctx, "a small wooden stool")
package testutil
