// Package votingengine implements ballot admission inside the polling
// context.
//
// The module owns the vote admission pipeline (eligibility, one-vote-per-voter
// claims, durable ledger append, running tallies), tally reads with rebuild
// recovery, and vote event production through outbox-backed workers. It keeps
// business rules in application/domain layers and isolates infrastructure
// concerns behind ports and adapters.
package votingengine
