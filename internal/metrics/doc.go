// Package metrics provides the named-counter registry that backs counted
// invocations. A Registry owns one Counter per name for its lifetime;
// callers obtain counters by name and the registry guarantees that every
// lookup under the same name yields the identical instance until the name
// is removed.
package metrics
