// Package errhero provides request-scoped error interception for HTTP servers
// and event-driven units of work.
//
// Every unhandled condition raised while a request is processed is observed
// exactly once, classified, optionally logged, and turned into a well-formed
// response instead of leaking a partial one to the client.
//
// # Core Components
//
//   - Classifier: decides whether a reported condition is ignored or promoted
//   - Middleware: the dispatch engine wrapping downstream handlers
//   - Reconciler: exit hook and output-buffer interceptor for fatal conditions
//     that end the handler goroutine without a normal return
//   - Listener: the same state machine for event-based integrations
//   - Collector / Sink: persistence pipeline used by the logging collaborator
//
// # Quick Start
//
//	collector := errhero.NewCollector(
//	    errhero.WithSink(stderr.NewStderrSink()),
//	    errhero.WithDefaultScrubbing(),
//	)
//	mw := errhero.New(cfg, logging.New(collector), renderer)
//	http.ListenAndServe(":8080", mw.Handler(mux))
//
// Inside handlers, non-fatal conditions are reported through the request
// context:
//
//	errhero.Report(r.Context(), errhero.TypeWarning, "cache miss for user")
//	errhero.Fatal(r.Context(), "template set is corrupt")
//
// # Design Principles
//
//   - Collaborators never break a request: logging failures are swallowed and
//     written to the diagnostic logger
//   - All state is request-scoped: nothing is shared between concurrent requests
//   - Suppressed mode never leaks condition messages to the client
package errhero
