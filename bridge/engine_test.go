package bridge

import (
	"errors"
	"math"
	"testing"

	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var errInsufficient = errors.New("insufficient balance")

type testLedger struct {
	balances map[common.Address]*uint256.Int
	mints    int
	burns    int
}

func newTestLedger() *testLedger {
	return &testLedger{balances: make(map[common.Address]*uint256.Int)}
}

func (l *testLedger) balance(account common.Address) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return uint256.NewInt(0)
}

func (l *testLedger) Mint(_ uint64, account common.Address, amount *uint256.Int) error {
	l.balances[account] = new(uint256.Int).Add(l.balance(account), amount)
	l.mints++
	return nil
}

func (l *testLedger) Burn(_ uint64, account common.Address, amount *uint256.Int) error {
	b := l.balance(account)
	if b.Lt(amount) {
		return errInsufficient
	}
	l.balances[account] = new(uint256.Int).Sub(b, amount)
	l.burns++
	return nil
}

func validatorAddr(i int) common.Address {
	return common.BytesToAddress([]byte{0xaa, byte(i + 1)})
}

var (
	outsider = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	user     = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type testEnv struct {
	store  *MemStore
	ledger *testLedger
	engine *Engine
	reader *Reader
}

func newTestEnv(t *testing.T, n int, modify ...func(p *types.Params)) *testEnv {
	t.Helper()
	store := NewMemStore()
	vals := make([]types.Validator, n)
	for i := range vals {
		vals[i] = types.Validator{Account: validatorAddr(i)}
	}
	reg, err := InitRegistry(store, uint64(n), vals)
	require.NoError(t, err)
	params := types.DefaultParams()
	params.ValidatorCount = uint64(n)
	for _, m := range modify {
		m(&params)
	}
	require.NoError(t, InitParams(store, params))
	ledger := newTestLedger()
	return &testEnv{
		store:  store,
		ledger: ledger,
		engine: NewEngine(store, reg, params, ledger, cmtlog.NewNopLogger()),
		reader: NewReader(store),
	}
}

func (env *testEnv) proposal(t *testing.T, id uint64) *types.Proposal {
	t.Helper()
	p, err := env.reader.Proposal(id)
	require.NoError(t, err)
	return p
}

func eventTypes(events []abcitypes.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestVotesAreEnough(t *testing.T) {
	cases := []struct {
		votes, count uint64
		want         bool
	}{
		{0, 1, false},
		{1, 1, true},
		{1, 3, false},
		{2, 3, true},
		{2, 5, false},
		{3, 5, true},
		{50, 100, false},
		{51, 100, true},
		{math.MaxUint64, math.MaxUint64, true},
		{math.MaxUint64 / 2, math.MaxUint64, false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, VotesAreEnough(c.votes, c.count), "votes %d count %d", c.votes, c.count)
	}
}

func TestMintAcceptedByMajority(t *testing.T) {
	env := newTestEnv(t, 3)
	amount := uint256.NewInt(500)
	origin := []byte("0xforeign")

	rcpt, err := env.engine.RequestMint(10, validatorAddr(0), []byte("evt-1"), origin, user, amount)
	require.NoError(t, err)
	require.True(t, rcpt.Created)
	require.Equal(t, uint64(1), rcpt.Proposal)
	require.Equal(t, OutcomePending, rcpt.Outcome)
	require.Equal(t, []string{types.EventMintProposedType, types.EventVoteType}, eventTypes(rcpt.Events))

	p := env.proposal(t, 1)
	require.True(t, p.Open)
	require.Equal(t, uint64(40), p.Deadline)
	require.Equal(t, uint64(1), p.Votes)
	require.Equal(t, origin, p.Foreign)
	require.Zero(t, env.ledger.mints)

	rcpt, err = env.engine.RequestMint(11, validatorAddr(1), []byte("evt-1"), origin, user, amount)
	require.NoError(t, err)
	require.False(t, rcpt.Created)
	require.Equal(t, uint64(1), rcpt.Proposal)
	require.Equal(t, OutcomeAccepted, rcpt.Outcome)
	require.Equal(t, []string{types.EventVoteType, types.EventProposalAcceptedType}, eventTypes(rcpt.Events))

	require.Equal(t, 1, env.ledger.mints)
	require.True(t, env.ledger.balance(user).Eq(amount))

	p = env.proposal(t, 1)
	require.False(t, p.Open)
	require.Equal(t, types.ProposalStatusAccepted, p.Status)
	require.True(t, p.Executed)
	require.Equal(t, uint64(11), p.Closed)

	_, ok, err := env.reader.OpenProposalByFingerprint(Fingerprint(types.ActionKindMint, []byte("evt-1")))
	require.NoError(t, err)
	require.False(t, ok)
	ids, err := env.reader.Deadline(40)
	require.NoError(t, err)
	require.Empty(t, ids)

	// the third validator arrives late: the proposal is closed
	_, err = env.engine.CastVote(12, validatorAddr(2), 1, true)
	require.ErrorIs(t, err, ErrNotOpen)
	require.Equal(t, 1, env.ledger.mints)

	// a late attestation of the same event opens a fresh proposal, the
	// closed one is left alone
	rcpt, err = env.engine.RequestMint(12, validatorAddr(2), []byte("evt-1"), origin, user, amount)
	require.NoError(t, err)
	require.True(t, rcpt.Created)
	require.Equal(t, uint64(2), rcpt.Proposal)
	require.Equal(t, OutcomePending, rcpt.Outcome)
	require.Equal(t, 1, env.ledger.mints)

	p = env.proposal(t, 1)
	require.Equal(t, types.ProposalStatusAccepted, p.Status)
	require.Equal(t, uint64(2), p.Votes)
}

func TestRejectedWhenEveryoneVoted(t *testing.T) {
	env := newTestEnv(t, 5)

	rcpt, err := env.engine.RequestMint(1, validatorAddr(0), []byte("evt"), nil, user, uint256.NewInt(7))
	require.NoError(t, err)
	id := rcpt.Proposal

	for i := 1; i < 4; i++ {
		rcpt, err = env.engine.CastVote(2, validatorAddr(i), id, false)
		require.NoError(t, err)
		require.Equal(t, OutcomePending, rcpt.Outcome)
	}
	rcpt, err = env.engine.CastVote(3, validatorAddr(4), id, false)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, rcpt.Outcome)
	require.Equal(t, []string{types.EventVoteType, types.EventProposalRejectedType}, eventTypes(rcpt.Events))

	p := env.proposal(t, id)
	require.Equal(t, types.ProposalStatusRejected, p.Status)
	require.Equal(t, uint64(1), p.Votes)
	require.Equal(t, uint64(5), p.Turnout)
	require.False(t, p.Executed)
	require.Zero(t, env.ledger.mints)
}

func TestDissentThenAssentAccepts(t *testing.T) {
	env := newTestEnv(t, 5)

	rcpt, err := env.engine.RequestMint(1, validatorAddr(0), []byte("evt"), nil, user, uint256.NewInt(7))
	require.NoError(t, err)
	_, err = env.engine.CastVote(1, validatorAddr(1), rcpt.Proposal, false)
	require.NoError(t, err)
	rcpt, err = env.engine.CastVote(1, validatorAddr(2), rcpt.Proposal, true)
	require.NoError(t, err)
	require.Equal(t, OutcomePending, rcpt.Outcome)
	rcpt, err = env.engine.CastVote(1, validatorAddr(3), rcpt.Proposal, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, rcpt.Outcome)
	require.Equal(t, 1, env.ledger.mints)
}

func TestVoteErrors(t *testing.T) {
	env := newTestEnv(t, 3)

	_, err := env.engine.RequestMint(1, outsider, []byte("evt"), nil, user, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.engine.RequestMint(1, validatorAddr(0), []byte("evt"), nil, user, uint256.NewInt(0))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.engine.CastVote(1, validatorAddr(0), 9, true)
	require.ErrorIs(t, err, ErrNotFound)

	rcpt, err := env.engine.RequestMint(1, validatorAddr(0), []byte("evt"), nil, user, uint256.NewInt(1))
	require.NoError(t, err)
	before := env.store.Len()

	_, err = env.engine.RequestMint(2, validatorAddr(0), []byte("evt"), nil, user, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrAlreadyVoted)
	_, err = env.engine.CastVote(2, validatorAddr(0), rcpt.Proposal, false)
	require.ErrorIs(t, err, ErrAlreadyVoted)
	_, err = env.engine.CastVote(2, outsider, rcpt.Proposal, true)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.Equal(t, before, env.store.Len())
	p := env.proposal(t, rcpt.Proposal)
	require.Equal(t, uint64(1), p.Votes)
	require.Equal(t, uint64(1), p.Turnout)
}

func TestActionMismatch(t *testing.T) {
	env := newTestEnv(t, 3)

	_, err := env.engine.RequestMint(1, validatorAddr(0), []byte("evt"), []byte("from"), user, uint256.NewInt(10))
	require.NoError(t, err)
	_, err = env.engine.RequestMint(1, validatorAddr(1), []byte("evt"), []byte("from"), user, uint256.NewInt(11))
	require.ErrorIs(t, err, ErrActionMismatch)
	_, err = env.engine.RequestMint(1, validatorAddr(1), []byte("evt"), []byte("other"), user, uint256.NewInt(10))
	require.ErrorIs(t, err, ErrActionMismatch)
	require.Equal(t, uint64(1), env.proposal(t, 1).Votes)
}

func TestMintAndBurnDoNotShareProposal(t *testing.T) {
	env := newTestEnv(t, 3)
	env.ledger.balances[user] = uint256.NewInt(100)

	mint, err := env.engine.RequestMint(1, validatorAddr(0), []byte("evt"), nil, user, uint256.NewInt(10))
	require.NoError(t, err)
	burn, err := env.engine.RequestBurn(1, validatorAddr(0), []byte("evt"), []byte("dest"), user, uint256.NewInt(10))
	require.NoError(t, err)
	require.True(t, burn.Created)
	require.NotEqual(t, mint.Proposal, burn.Proposal)
	require.Equal(t, types.EventBurnProposedType, burn.Events[0].Type)
	require.NotEqual(t, Fingerprint(types.ActionKindMint, []byte("evt")), Fingerprint(types.ActionKindBurn, []byte("evt")))
}

func TestCapacityPerDeadline(t *testing.T) {
	env := newTestEnv(t, 3, func(p *types.Params) { p.MaxOpenPerDeadline = 2 })

	_, err := env.engine.RequestMint(5, validatorAddr(0), []byte("a"), nil, user, uint256.NewInt(1))
	require.NoError(t, err)
	_, err = env.engine.RequestMint(5, validatorAddr(0), []byte("b"), nil, user, uint256.NewInt(1))
	require.NoError(t, err)

	before := env.store.Len()
	_, err = env.engine.RequestMint(5, validatorAddr(0), []byte("c"), nil, user, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Equal(t, before, env.store.Len())

	count, err := env.reader.ProposalCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	// the next block targets a different deadline
	rcpt, err := env.engine.RequestMint(6, validatorAddr(0), []byte("c"), nil, user, uint256.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, uint64(3), rcpt.Proposal)
}

func TestClosedProposalFreesCapacity(t *testing.T) {
	env := newTestEnv(t, 3, func(p *types.Params) { p.MaxOpenPerDeadline = 1 })

	_, err := env.engine.RequestMint(5, validatorAddr(0), []byte("a"), nil, user, uint256.NewInt(1))
	require.NoError(t, err)
	_, err = env.engine.RequestMint(5, validatorAddr(1), []byte("a"), nil, user, uint256.NewInt(1))
	require.NoError(t, err)

	_, err = env.engine.RequestMint(5, validatorAddr(0), []byte("b"), nil, user, uint256.NewInt(1))
	require.NoError(t, err)
}

func TestSubmit(t *testing.T) {
	env := newTestEnv(t, 3)
	fp := Fingerprint(types.ActionKindMint, []byte("evt"))
	action := types.MintRequest{Account: user, Amount: uint256.NewInt(3)}

	id, created, err := env.engine.Submit(1, fp, action, nil)
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := env.engine.Submit(2, fp, action, nil)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, id, again)
	require.Zero(t, env.proposal(t, id).Votes)

	got, ok, err := env.reader.FingerprintOf(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fp, got)

	_, err = env.engine.createProposal(env.store, 3, fp, action, nil)
	require.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestSubmitRejectsInvalidActions(t *testing.T) {
	env := newTestEnv(t, 3)
	before := env.store.Len()

	cases := []struct {
		action types.Action
		err    error
	}{
		{types.EmptyAction{}, ErrUnknownAction},
		{nil, ErrUnknownAction},
		{types.MintRequest{Account: user, Amount: uint256.NewInt(0)}, ErrInvalidAmount},
		{types.BurnRequest{Account: user}, ErrInvalidAmount},
	}
	for i, c := range cases {
		fp := Fingerprint(types.ActionKindMint, []byte{byte(i)})
		_, created, err := env.engine.Submit(1, fp, c.action, nil)
		require.ErrorIs(t, err, c.err, "case %d", i)
		require.False(t, created)
	}

	require.Equal(t, before, env.store.Len())
	count, err := env.reader.ProposalCount()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestOverflow(t *testing.T) {
	env := newTestEnv(t, 3)

	_, err := env.engine.RequestMint(math.MaxUint64-5, validatorAddr(0), []byte("a"), nil, user, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)

	require.NoError(t, setUint64(env.store, KeyProposalCount, math.MaxUint64))
	_, err = env.engine.RequestMint(1, validatorAddr(0), []byte("a"), nil, user, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestExpiry(t *testing.T) {
	env := newTestEnv(t, 3)

	rcpt, err := env.engine.RequestMint(10, validatorAddr(0), []byte("evt"), nil, user, uint256.NewInt(1))
	require.NoError(t, err)

	events, err := env.engine.OnBlockFinalize(39)
	require.NoError(t, err)
	require.Empty(t, events)
	require.True(t, env.proposal(t, rcpt.Proposal).Open)

	events, err = env.engine.OnBlockFinalize(40)
	require.NoError(t, err)
	require.Equal(t, []string{types.EventProposalExpiredType}, eventTypes(events))
	closed := types.DecodeEventProposalClosed(events[0])
	require.Equal(t, rcpt.Proposal, closed.Proposal)
	require.Equal(t, uint64(40), closed.Height)

	p := env.proposal(t, rcpt.Proposal)
	require.False(t, p.Open)
	require.Equal(t, types.ProposalStatusExpired, p.Status)
	require.Zero(t, env.ledger.mints)

	ids, err := env.reader.Deadline(40)
	require.NoError(t, err)
	require.Empty(t, ids)

	_, err = env.engine.CastVote(41, validatorAddr(1), rcpt.Proposal, true)
	require.ErrorIs(t, err, ErrNotOpen)

	// the event can be attested again once its proposal is gone
	rcpt, err = env.engine.RequestMint(41, validatorAddr(0), []byte("evt"), nil, user, uint256.NewInt(1))
	require.NoError(t, err)
	require.True(t, rcpt.Created)
	require.Equal(t, uint64(2), rcpt.Proposal)
}

func TestExecutionFailureClosesProposal(t *testing.T) {
	env := newTestEnv(t, 3)

	rcpt, err := env.engine.RequestBurn(1, validatorAddr(0), []byte("evt"), []byte("dest"), user, uint256.NewInt(50))
	require.NoError(t, err)
	rcpt, err = env.engine.RequestBurn(1, validatorAddr(1), []byte("evt"), []byte("dest"), user, uint256.NewInt(50))

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.ErrorIs(t, err, errInsufficient)
	require.Equal(t, types.ActionKindBurn, execErr.Kind)
	require.Equal(t, OutcomeAccepted, rcpt.Outcome)
	require.Equal(t, []string{types.EventVoteType, types.EventProposalAcceptedType, types.EventExecutionFailedType}, eventTypes(rcpt.Events))

	p := env.proposal(t, rcpt.Proposal)
	require.Equal(t, types.ProposalStatusAccepted, p.Status)
	require.False(t, p.Open)
	require.False(t, p.Executed)
	require.Equal(t, errInsufficient.Error(), p.ExecError)
	require.Zero(t, env.ledger.burns)
}

func TestExecute(t *testing.T) {
	ledger := newTestLedger()
	require.NoError(t, Execute(ledger, types.EmptyAction{}))
	require.NoError(t, Execute(ledger, types.MintRequest{Account: user, Amount: uint256.NewInt(4)}))
	require.NoError(t, Execute(ledger, types.BurnRequest{Account: user, Amount: uint256.NewInt(3)}))
	require.True(t, ledger.balance(user).Eq(uint256.NewInt(1)))
	require.ErrorIs(t, Execute(ledger, types.BurnRequest{Account: user, Amount: uint256.NewInt(3)}), errInsufficient)
	require.ErrorIs(t, Execute(ledger, nil), ErrUnknownAction)
}
