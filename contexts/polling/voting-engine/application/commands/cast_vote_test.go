package commands

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"agora/contexts/polling/voting-engine/adapters/memory"
	"agora/contexts/polling/voting-engine/domain/entities"
	domainerrors "agora/contexts/polling/voting-engine/domain/errors"
	"agora/contexts/polling/voting-engine/ports"
)

type failingLedger struct {
	ports.VoteLedger
}

func (failingLedger) AppendVote(context.Context, entities.Vote) (int64, error) {
	return 0, domainerrors.ErrStorageUnavailable
}

type recordingNotifier struct {
	mu    sync.Mutex
	votes []entities.Vote
	err   error
}

func (n *recordingNotifier) VoteAccepted(_ context.Context, vote entities.Vote) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.votes = append(n.votes, vote)
	return n.err
}

func TestCastVoteAssignsPositionsAndCounts(t *testing.T) {
	store := memory.NewStore([]ports.PollState{{
		PollID:    "poll-1",
		Status:    "open",
		OptionIDs: []string{"option-a", "option-b"},
	}})
	useCase := CastVoteUseCase{
		Catalog: store,
		Claims:  store,
		Ledger:  store,
		Tallies: store,
		Outbox:  store,
		Clock:   store,
		IDGen:   store,
	}

	first, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-1", OptionID: "option-a", VoterID: "voter-1"})
	if err != nil {
		t.Fatalf("first cast failed: %v", err)
	}
	second, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-1", OptionID: "option-b", VoterID: "voter-2"})
	if err != nil {
		t.Fatalf("second cast failed: %v", err)
	}
	if first.Vote.Position <= 0 {
		t.Fatalf("expected positive position, got %d", first.Vote.Position)
	}
	if second.Vote.Position <= first.Vote.Position {
		t.Fatalf("expected increasing positions, got %d then %d", first.Vote.Position, second.Vote.Position)
	}

	tally, found, err := store.GetTally(context.Background(), "poll-1")
	if err != nil || !found {
		t.Fatalf("tally read failed: found=%v err=%v", found, err)
	}
	if tally.Counts["option-a"] != 1 || tally.Counts["option-b"] != 1 || tally.Total != 2 {
		t.Fatalf("unexpected tally after two votes: %+v", tally)
	}

	outbox, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(outbox) != 2 {
		t.Fatalf("expected 2 staged vote events, got %d", len(outbox))
	}
}

func TestCastVoteRejectsSecondBallotFromSameVoter(t *testing.T) {
	store := memory.NewStore([]ports.PollState{{
		PollID:    "poll-1",
		Status:    "open",
		OptionIDs: []string{"option-a", "option-b"},
	}})
	useCase := CastVoteUseCase{
		Catalog: store,
		Claims:  store,
		Ledger:  store,
		Tallies: store,
		Clock:   store,
		IDGen:   store,
	}

	if _, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-1", OptionID: "option-a", VoterID: "voter-1"}); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}
	_, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-1", OptionID: "option-b", VoterID: "voter-1"})
	if err != domainerrors.ErrDuplicateVote {
		t.Fatalf("expected duplicate vote, got %v", err)
	}

	votes, err := store.ReadAllVotes(context.Background(), "poll-1")
	if err != nil {
		t.Fatalf("read ledger failed: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("expected single ledger entry, got %d", len(votes))
	}
	tally, _, err := store.GetTally(context.Background(), "poll-1")
	if err != nil {
		t.Fatalf("tally read failed: %v", err)
	}
	if tally.Total != 1 {
		t.Fatalf("expected total 1 after rejected duplicate, got %d", tally.Total)
	}
}

func TestCastVoteAdmissionRejections(t *testing.T) {
	closesAt := time.Now().UTC().Add(-time.Minute)
	store := memory.NewStore([]ports.PollState{
		{PollID: "poll-open", Status: "open", OptionIDs: []string{"option-a"}},
		{PollID: "poll-closed", Status: "closed", OptionIDs: []string{"option-a"}},
		{PollID: "poll-expired", Status: "open", ClosesAt: &closesAt, OptionIDs: []string{"option-a"}},
	})
	useCase := CastVoteUseCase{
		Catalog: store,
		Claims:  store,
		Ledger:  store,
		Tallies: store,
		Clock:   store,
		IDGen:   store,
	}

	if _, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "", OptionID: "option-a", VoterID: "voter-1"}); err != domainerrors.ErrInvalidVoteInput {
		t.Fatalf("expected invalid input for blank poll, got %v", err)
	}
	if _, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-open", OptionID: "option-a", VoterID: " "}); err != domainerrors.ErrInvalidVoteInput {
		t.Fatalf("expected invalid input for blank voter, got %v", err)
	}
	if _, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-missing", OptionID: "option-a", VoterID: "voter-1"}); err != domainerrors.ErrPollNotFound {
		t.Fatalf("expected poll not found, got %v", err)
	}
	if _, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-closed", OptionID: "option-a", VoterID: "voter-1"}); err != domainerrors.ErrPollClosed {
		t.Fatalf("expected poll closed, got %v", err)
	}
	if _, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-expired", OptionID: "option-a", VoterID: "voter-1"}); err != domainerrors.ErrPollClosed {
		t.Fatalf("expected poll closed past scheduled close, got %v", err)
	}
	if _, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-open", OptionID: "option-foreign", VoterID: "voter-1"}); err != domainerrors.ErrOptionNotInPoll {
		t.Fatalf("expected option not in poll, got %v", err)
	}

	votes, err := store.ReadAllVotes(context.Background(), "poll-open")
	if err != nil {
		t.Fatalf("read ledger failed: %v", err)
	}
	if len(votes) != 0 {
		t.Fatalf("expected no ledger writes from rejected ballots, got %d", len(votes))
	}
}

func TestCastVoteReleasesClaimWhenAppendFails(t *testing.T) {
	store := memory.NewStore([]ports.PollState{{
		PollID:    "poll-1",
		Status:    "open",
		OptionIDs: []string{"option-a"},
	}})
	broken := CastVoteUseCase{
		Catalog: store,
		Claims:  store,
		Ledger:  failingLedger{},
		Tallies: store,
		Clock:   store,
		IDGen:   store,
	}

	_, err := broken.Execute(context.Background(), CastVoteCommand{PollID: "poll-1", OptionID: "option-a", VoterID: "voter-1"})
	if err != domainerrors.ErrStorageUnavailable {
		t.Fatalf("expected storage failure, got %v", err)
	}

	healthy := CastVoteUseCase{
		Catalog: store,
		Claims:  store,
		Ledger:  store,
		Tallies: store,
		Clock:   store,
		IDGen:   store,
	}
	result, err := healthy.Execute(context.Background(), CastVoteCommand{PollID: "poll-1", OptionID: "option-a", VoterID: "voter-1"})
	if err != nil {
		t.Fatalf("retry after failed append should succeed: %v", err)
	}
	if result.Vote.Position <= 0 {
		t.Fatalf("expected ledger position on retry, got %d", result.Vote.Position)
	}
}

func TestCastVoteConcurrentDuplicateAdmitsExactlyOne(t *testing.T) {
	store := memory.NewStore([]ports.PollState{{
		PollID:    "poll-1",
		Status:    "open",
		OptionIDs: []string{"option-a", "option-b"},
	}})
	useCase := CastVoteUseCase{
		Catalog: store,
		Claims:  store,
		Ledger:  store,
		Tallies: store,
		Clock:   store,
		IDGen:   store,
	}

	var wg sync.WaitGroup
	outcomes := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-1", OptionID: "option-a", VoterID: "voter-1"})
			outcomes <- err
		}()
	}
	wg.Wait()
	close(outcomes)

	accepted, duplicates := 0, 0
	for err := range outcomes {
		switch err {
		case nil:
			accepted++
		case domainerrors.ErrDuplicateVote:
			duplicates++
		default:
			t.Fatalf("unexpected admission error: %v", err)
		}
	}
	if accepted != 1 || duplicates != 15 {
		t.Fatalf("expected 1 accepted and 15 duplicates, got %d and %d", accepted, duplicates)
	}

	votes, err := store.ReadAllVotes(context.Background(), "poll-1")
	if err != nil {
		t.Fatalf("read ledger failed: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("expected single ledger entry, got %d", len(votes))
	}
	tally, _, err := store.GetTally(context.Background(), "poll-1")
	if err != nil {
		t.Fatalf("tally read failed: %v", err)
	}
	if tally.Total != 1 {
		t.Fatalf("expected total 1, got %d", tally.Total)
	}
}

func TestCastVoteConcurrentDistinctVotersLoseNoIncrements(t *testing.T) {
	store := memory.NewStore([]ports.PollState{{
		PollID:    "poll-1",
		Status:    "open",
		OptionIDs: []string{"option-a"},
	}})
	useCase := CastVoteUseCase{
		Catalog: store,
		Claims:  store,
		Ledger:  store,
		Tallies: store,
		Clock:   store,
		IDGen:   store,
	}

	var wg sync.WaitGroup
	outcomes := make(chan error, 100)
	for i := 0; i < 100; i++ {
		voter := "voter-" + strconv.Itoa(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-1", OptionID: "option-a", VoterID: voter})
			outcomes <- err
		}()
	}
	wg.Wait()
	close(outcomes)

	for err := range outcomes {
		if err != nil {
			t.Fatalf("admission failed: %v", err)
		}
	}

	votes, err := store.ReadAllVotes(context.Background(), "poll-1")
	if err != nil {
		t.Fatalf("read ledger failed: %v", err)
	}
	if len(votes) != 100 {
		t.Fatalf("expected 100 ledger entries, got %d", len(votes))
	}
	tally, _, err := store.GetTally(context.Background(), "poll-1")
	if err != nil {
		t.Fatalf("tally read failed: %v", err)
	}
	if tally.Counts["option-a"] != 100 || tally.Total != 100 {
		t.Fatalf("lost increments: counts=%v total=%d", tally.Counts, tally.Total)
	}
}

func TestCastVoteSurvivesNotifierFailure(t *testing.T) {
	store := memory.NewStore([]ports.PollState{{
		PollID:    "poll-1",
		Status:    "open",
		OptionIDs: []string{"option-a"},
	}})
	notifier := &recordingNotifier{err: errors.New("results side offline")}
	useCase := CastVoteUseCase{
		Catalog:  store,
		Claims:   store,
		Ledger:   store,
		Tallies:  store,
		Notifier: notifier,
		Clock:    store,
		IDGen:    store,
	}

	result, err := useCase.Execute(context.Background(), CastVoteCommand{PollID: "poll-1", OptionID: "option-a", VoterID: "voter-1"})
	if err != nil {
		t.Fatalf("cast with failing notifier should still accept: %v", err)
	}
	if len(notifier.votes) != 1 || notifier.votes[0].VoteID != result.Vote.VoteID {
		t.Fatalf("expected notifier to see the accepted vote, got %+v", notifier.votes)
	}
	tally, _, err := store.GetTally(context.Background(), "poll-1")
	if err != nil {
		t.Fatalf("tally read failed: %v", err)
	}
	if tally.Counts["option-a"] != 1 {
		t.Fatalf("expected counted vote despite notifier failure, got %+v", tally)
	}
}
