/*
Package observability turns the engine's lifecycle hooks into structured logs
and Prometheus metrics.

Both producers return a domain.LifecycleHooks value; combine them with
domain.CombineHooks and pass the result to insurai.WithLifecycleHooks.
*/
package observability
