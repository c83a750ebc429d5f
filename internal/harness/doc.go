// Package harness runs scripted scenarios against a real engine and checks
// the recorded trace and the reconciled state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: append_cascade
//	description: "Appending a child grows the child organism"
//	html: |
//	  <ul id="parent"><li class="child">one</li></ul>
//	organisms: ["#parent", ".child"]
//	steps:
//	  - organism: "#parent"
//	    method: append
//	    args: '<li class="child">two</li>'
//	  - external:
//	      selector: "#parent li"
//	      set_attr: {title: edited}
//	    expect:
//	      - type: state_equals
//	        organism: .child
//	        path: members.1.attributes.title
//	        value: edited
//	assertions:
//	  - type: state_length
//	    organism: .child
//	    path: members
//	    count: 2
//	  - type: trace_order
//	    actions: [APPEND]
//
// A scenario takes its page from exactly one of html, html_file or
// manifest. A manifest (see package manifest) also supplies the organisms,
// the layout, a script reducer and actions that run before the steps.
//
// # Steps
//
// A step is a dispatch (organism, method, args and either member or
// filter), an external change to the page made behind the engine's back,
// or an incept. Any step may carry expect assertions, which are checked
// right after it runs.
//
// # Assertion Types
//
//   - state_equals: the value at organism/path equals value
//   - state_length: the array, object or string at organism/path has count entries
//   - state_null: the value at organism/path is null or absent
//   - state_contains: the array at organism/path holds value, or the string contains it
//   - trace_contains: an action of the type (and selector, args) was dispatched
//   - trace_order: actions appear in the specified order
//   - trace_count: an action appears exactly count times
//
// State assertions reconcile the engine first, so they observe external
// changes. The reads that reconciliation dispatches are journaled like any
// other action and show up in later trace assertions.
//
// # Deterministic Testing
//
// Each run records into a fresh in-memory journal under a fixed session id
// with a testutil.DeterministicClock, so the trace, seq numbers included,
// is identical across runs and can be compared with golden files. A run
// recorded into a caller's journal (WithJournal) continues the session after
// its last seq, and its trace holds only the entries that run recorded.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/toggle.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
