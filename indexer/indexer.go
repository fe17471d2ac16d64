package indexer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/calehh/bridge-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

const (
	KindMint = "mint"
	KindBurn = "burn"

	pollInterval = time.Second
)

// BlockSource is the part of the CometBFT RPC client the indexer reads.
type BlockSource interface {
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error)
}

// ChainIndexer follows finalized blocks and mirrors the bridge
// notifications into sqlite.
type ChainIndexer struct {
	logger        cmtlog.Logger
	Height        int64
	db            *gorm.DB
	cli           BlockSource
	eventHandlers map[string]eventHandler
}

func OpenDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Proposal{}, &Height{}, &ProposalVote{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewChainIndexer(logger cmtlog.Logger, db *gorm.DB, cli BlockSource) (*ChainIndexer, error) {
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	c := &ChainIndexer{
		logger: logger.With("module", "indexer"),
		Height: int64(h.Height + 1),
		db:     db,
		cli:    cli,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventMintProposedType:     c.handleEventProposed(KindMint),
		types.EventBurnProposedType:     c.handleEventProposed(KindBurn),
		types.EventVoteType:             c.handleEventVote,
		types.EventProposalAcceptedType: c.handleEventClosed(types.ProposalStatusAccepted),
		types.EventProposalRejectedType: c.handleEventClosed(types.ProposalStatusRejected),
		types.EventProposalExpiredType:  c.handleEventClosed(types.ProposalStatusExpired),
		types.EventExecutionFailedType:  c.handleEventExecutionFailed,
	}
	logger.Info("NewChainIndexer", "height", c.Height)
	return c, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

type eventHandler func(db *gorm.DB, event abci.Event, height int64) error

func (c *ChainIndexer) handleEvent(db *gorm.DB, event abci.Event, height int64) error {
	if h, ok := c.eventHandlers[event.Type]; ok {
		return h(db, event, height)
	}
	return nil
}

func (c *ChainIndexer) handleEventProposed(kind string) eventHandler {
	return func(db *gorm.DB, event abci.Event, height int64) error {
		ev := types.DecodeEventProposed(event)
		if ev == nil {
			return fmt.Errorf("decode %s event fail", event.Type)
		}
		proposal := Proposal{
			Id:        ev.Proposal,
			Kind:      kind,
			Token:     ev.Token,
			Account:   ev.Account.Hex(),
			Amount:    ev.Amount.Dec(),
			Foreign:   hex.EncodeToString(ev.Foreign),
			Deadline:  ev.Deadline,
			NewHeight: uint64(height),
			Status:    types.ProposalStatusOpen.String(),
		}
		return db.Save(&proposal).Error
	}
}

func (c *ChainIndexer) handleEventVote(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventVote(event)
	if ev == nil {
		return errors.New("decode vote event fail")
	}
	vote := ProposalVote{
		Proposal:       ev.Proposal,
		ValidatorIndex: ev.Validator,
		VoterAddress:   ev.Voter.Hex(),
		Assent:         ev.Assent,
		Height:         uint64(height),
	}
	if err := db.Create(&vote).Error; err != nil {
		return err
	}
	updates := map[string]interface{}{"turnout": gorm.Expr("turnout + 1")}
	if ev.Assent {
		updates["votes"] = gorm.Expr("votes + 1")
	}
	return db.Model(&Proposal{}).Where("id = ?", ev.Proposal).Updates(updates).Error
}

func (c *ChainIndexer) handleEventClosed(status types.ProposalStatus) eventHandler {
	return func(db *gorm.DB, event abci.Event, height int64) error {
		ev := types.DecodeEventProposalClosed(event)
		if ev == nil {
			return fmt.Errorf("decode %s event fail", event.Type)
		}
		var proposal Proposal
		if err := db.First(&proposal, ev.Proposal).Error; err != nil {
			return err
		}
		proposal.Status = status.String()
		proposal.CloseHeight = ev.Height
		proposal.Votes = ev.Votes
		proposal.Turnout = ev.Turnout
		proposal.Executed = status == types.ProposalStatusAccepted
		return db.Save(&proposal).Error
	}
}

func (c *ChainIndexer) handleEventExecutionFailed(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventExecutionFailed(event)
	if ev == nil {
		return errors.New("decode execution_failed event fail")
	}
	return db.Model(&Proposal{}).Where("id = ?", ev.Proposal).Updates(map[string]interface{}{
		"executed":   false,
		"exec_error": ev.Reason,
	}).Error
}

// indexBlock applies the tx events of a block in order, then its block
// level events, and records the height, all in one sqlite transaction.
func (c *ChainIndexer) indexBlock(res *coretypes.ResultBlockResults) (err error) {
	db := c.db.Begin()
	if err = db.Error; err != nil {
		return err
	}
	defer func() {
		if err != nil {
			db.Rollback()
		}
	}()
	for _, txRes := range res.TxsResults {
		for _, event := range txRes.Events {
			if err = c.handleEvent(db, event, res.Height); err != nil {
				return err
			}
		}
	}
	for _, event := range res.FinalizeBlockEvents {
		if err = c.handleEvent(db, event, res.Height); err != nil {
			return err
		}
	}
	if err = db.Save(&Height{Id: 1, Height: uint64(res.Height)}).Error; err != nil {
		return err
	}
	return db.Commit().Error
}

// Sync indexes every block up to the latest one the node reports.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	status, err := c.cli.Status(ctx)
	if err != nil {
		return err
	}
	for status.SyncInfo.LatestBlockHeight >= c.Height {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		height := c.Height
		res, err := c.cli.BlockResults(ctx, &height)
		if err != nil {
			return fmt.Errorf("block results %d: %w", height, err)
		}
		if err = c.indexBlock(res); err != nil {
			return fmt.Errorf("index block %d: %w", height, err)
		}
		c.logger.Debug("indexed block", "height", height)
		c.Height++
	}
	return nil
}

func (c *ChainIndexer) Start(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

// ProposalFilter narrows getProposals; zero fields match everything.
type ProposalFilter struct {
	Kind    string
	Status  string
	Account string
}

func (c *ChainIndexer) getProposals(filter ProposalFilter, page int, pageSize int) ([]Proposal, uint64, error) {
	query := c.db.Model(&Proposal{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Account != "" {
		query = query.Where("account = ?", filter.Account)
	}
	var total uint64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var proposals []Proposal
	err := query.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalById(proposalId uint64) (Proposal, error) {
	var proposal Proposal
	err := c.db.Where("id = ?", proposalId).First(&proposal).Error
	if err != nil {
		return Proposal{}, err
	}
	return proposal, nil
}

func (c *ChainIndexer) getProposalVotesByProposal(proposal uint64, page int, pageSize int) ([]ProposalVote, error) {
	var votes []ProposalVote
	err := c.db.Where("proposal = ?", proposal).Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (c *ChainIndexer) getProposalVotesByVoter(voter string, page int, pageSize int) ([]ProposalVote, uint64, error) {
	var votes []ProposalVote
	err := c.db.Where("voter_address = ?", voter).Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&ProposalVote{}).Where("voter_address = ?", voter).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

func (c *ChainIndexer) indexedHeight() (uint64, error) {
	h := Height{Id: 1}
	if err := c.db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	return h.Height, nil
}
