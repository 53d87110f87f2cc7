// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil provides shared test helpers and fixtures for this
module's package tests, avoiding duplicated test infrastructure across
packages.

# Core capabilities

  - Context helpers: TestContext / TestContextWithTimeout / CancelledContext,
    auto-registering Cleanup so tests don't leak goroutines
  - Assertions: AssertExecutionStatus / AssertNodeStatus / AssertJSONEqual /
    AssertNoError / AssertError
  - Async assertions: AssertEventuallyTrue / AssertEventuallyEqual, polling
    with a timeout for engine/scheduler state that settles asynchronously
  - Data helpers: MustJSON / MustParseJSON / CollectEvents
  - Benchmark helper: BenchmarkHelper wraps common testing.B operations

# Subpackages

  - testutil/mocks: AgentInvoker/ToolInvoker/persistence.ExecutionRepo test
    doubles, builder-configured with fixed responses, error injection, and
    call recording
  - testutil/fixtures: workflow and execution-record factories (linear DAG,
    diamond DAG with switch/join, looping DAG, approval state machine)

# Example

	ctx := testutil.TestContext(t)
	inv := mocks.NewAgentInvoker().WithResponse("reviewer", map[string]any{"approved": true})
	out, err := inv.InvokeAgent(ctx, "reviewer", nil, nil)
	testutil.AssertNoError(t, err)
*/
package testutil
