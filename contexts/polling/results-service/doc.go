// Package resultsservice serves aggregated poll results inside the polling
// context.
//
// Results are materialized as immutable snapshots (per-option counts and
// percentages over the poll's full option list) computed from the live tally
// and the registry catalog. A hot in-process cache fronts a durable snapshot
// store; reads collapse concurrent recomputes, degrade to stale snapshots
// when the tally side is unreachable, and snapshots of closed polls freeze
// as final. Accepted votes stream in through a consumer that patches cached
// snapshots in place, and a sweeper re-derives open polls on an interval.
package resultsservice
