// Package hooks sequences extension decisions at lifecycle hook points.
//
// Extensions register callables per [Point] in a [Registry]. A [Dispatcher]
// runs them in order for one event and folds their outcomes:
//
//   - Continue passes the (possibly modified) output to the next hook.
//   - Skip, Abort and Replace end the chain and become the final outcome.
//   - Tool hooks may carry a name pattern; a hook whose pattern does not
//     match the tool is not invoked at all.
//   - A permission Allow from a source the [TrustPolicy] does not vouch for
//     is turned back into Ask, and the next hook still runs.
//
// A hook returning an error, or panicking, aborts the dispatch with an
// [*ExecutionError].
//
//	reg := hooks.NewRegistry()
//	reg.RegisterToolBefore("audit", auditFn, hooks.WithPattern("write*"))
//	d := hooks.NewDispatcher(reg, hooks.WithTrustPolicy(hooks.NewStaticTrust("builtin")))
//	out, err := d.ToolExecuteBefore(ctx, hooks.ToolBeforeInput{Tool: "write_file", Args: args})
package hooks
