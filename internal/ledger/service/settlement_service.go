package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/partnerhub/token-ledger/internal/domain/account"
	"github.com/partnerhub/token-ledger/internal/domain/audit"
	"github.com/partnerhub/token-ledger/internal/domain/directory"
	"github.com/partnerhub/token-ledger/internal/domain/ledgererr"
	"github.com/partnerhub/token-ledger/internal/domain/notification"
	"github.com/partnerhub/token-ledger/internal/domain/transaction"
)

// SettlementServiceImpl implements the SettlementService interface
type SettlementServiceImpl struct {
	pgDB     TxRunner
	accounts account.Repository
	ledger   transaction.Repository
	users    directory.UserDirectory
	projects directory.ProjectRegistry
	notifier Notifier
	auditor  audit.Recorder
	logger   *slog.Logger
}

// NewSettlementService creates a new direct settlement service
func NewSettlementService(
	logger *slog.Logger,
	pgDB TxRunner,
	accounts account.Repository,
	ledger transaction.Repository,
	users directory.UserDirectory,
	projects directory.ProjectRegistry,
	notifier Notifier,
	auditor audit.Recorder,
) SettlementService {
	return &SettlementServiceImpl{
		pgDB:     pgDB,
		accounts: accounts,
		ledger:   ledger,
		users:    users,
		projects: projects,
		notifier: notifier,
		auditor:  auditor,
		logger:   logger,
	}
}

func (s *SettlementServiceImpl) recordAudit(ctx context.Context, actorID uuid.UUID, action string, objectID, summary string, metadata map[string]any) {
	rec := &audit.Record{
		ActorID:    actorID,
		Action:     action,
		ObjectID:   objectID,
		Summary:    summary,
		Metadata:   metadata,
		RecordedAt: time.Now(),
	}
	if err := s.auditor.Record(ctx, rec); err != nil {
		s.logger.Error("Failed to write audit record", "action", action, "object_id", objectID, "error", err)
	}
}

// settleCredit applies one credit-only settlement: lock the receiving
// account, credit it, and append the completed transaction row, all in one
// database transaction. Grants, rewards and single dividend payouts share
// these mechanics.
func settleCredit(ctx context.Context, accounts account.Repository, ledger transaction.Repository, t *transaction.Transaction) error {
	receiver, err := accounts.LockForUpdate(ctx, *t.ToUserID)
	if err != nil {
		return err
	}
	if err := receiver.Credit(t.Amount); err != nil {
		return err
	}
	if err := accounts.Update(ctx, receiver); err != nil {
		return err
	}
	return ledger.Create(ctx, t)
}

// AdminGrant credits a user in one atomic step. Credit-only, so no overdraft
// check is needed.
func (s *SettlementServiceImpl) AdminGrant(ctx context.Context, adminID, toUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*transaction.Transaction, error) {
	t, err := transaction.NewGrant(adminID, toUserID, amount, reason, relatedProjectID)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.AccountExists(ctx, toUserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ledgererr.NotFound{Resource: "account", ID: toUserID.String()}
	}

	err = s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return settleCredit(ctx, s.accounts.WithTx(tx), s.ledger.WithTx(tx), t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Admin grant settled",
		"transaction_id", t.ID.String(),
		"admin_id", adminID.String(),
		"to_user_id", toUserID.String(),
		"amount", amount,
	)

	s.notifier.Notify(ctx, []uuid.UUID{toUserID}, notification.EventGrantReceived, t)
	s.recordAudit(ctx, adminID, "settlement.grant", t.ID.String(), "administrative grant",
		map[string]any{"to_user_id": toUserID.String(), "amount": amount, "reason": reason})

	return t, nil
}

// AdminDeduct debits a user in one atomic step. The balance check runs under
// the account row lock, not just at request validation time.
func (s *SettlementServiceImpl) AdminDeduct(ctx context.Context, adminID, fromUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*transaction.Transaction, error) {
	t, err := transaction.NewDeduct(adminID, fromUserID, amount, reason, relatedProjectID)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.AccountExists(ctx, fromUserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ledgererr.NotFound{Resource: "account", ID: fromUserID.String()}
	}

	err = s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := s.accounts.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		debited, err := accounts.LockForUpdate(ctx, fromUserID)
		if err != nil {
			return err
		}
		if err := debited.Debit(amount); err != nil {
			return err
		}
		if err := accounts.Update(ctx, debited); err != nil {
			return err
		}
		return ledger.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Admin deduction settled",
		"transaction_id", t.ID.String(),
		"admin_id", adminID.String(),
		"from_user_id", fromUserID.String(),
		"amount", amount,
	)

	s.notifier.Notify(ctx, []uuid.UUID{fromUserID}, notification.EventDeductApplied, t)
	s.recordAudit(ctx, adminID, "settlement.deduct", t.ID.String(), "administrative deduction",
		map[string]any{"from_user_id": fromUserID.String(), "amount": amount, "reason": reason})

	return t, nil
}

// DistributeDividend credits every recipient of a project distribution batch
// inside one database transaction. The batch fully applies or fully aborts:
// a missing account or failed credit anywhere rolls back every recipient.
func (s *SettlementServiceImpl) DistributeDividend(ctx context.Context, adminID, projectID uuid.UUID, distributions []Distribution, reason string) ([]*transaction.Transaction, error) {
	if len(distributions) == 0 {
		return nil, ledgererr.Validation{Reason: "dividend distribution cannot be empty"}
	}

	restriction, err := s.projects.GetProjectRestriction(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !restriction.ReviewApproved {
		return nil, ledgererr.Validation{Reason: "project has not passed review"}
	}
	if restriction.Abandoned {
		return nil, ledgererr.Validation{Reason: "project has been abandoned"}
	}

	payouts := make([]*transaction.Transaction, 0, len(distributions))
	for _, dist := range distributions {
		payoutReason := reason
		if dist.Note != "" {
			payoutReason = reason + ": " + dist.Note
		}
		t, err := transaction.NewDividend(adminID, dist.UserID, projectID, dist.Amount, payoutReason)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, t)
	}

	err = s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := s.accounts.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		// Missing recipients surface as NotFound from the lock and abort
		// the whole batch before any sibling credit commits.
		for _, t := range payouts {
			if err := settleCredit(ctx, accounts, ledger, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Dividend distributed",
		"project_id", projectID.String(),
		"admin_id", adminID.String(),
		"recipients", len(payouts),
	)

	for _, t := range payouts {
		s.notifier.Notify(ctx, []uuid.UUID{*t.ToUserID}, notification.EventDividendReceived, t)
	}
	s.notifier.Notify(ctx, nil, notification.EventProjectTimeline, payouts)
	s.recordAudit(ctx, adminID, "settlement.dividend", projectID.String(), "project dividend distributed",
		map[string]any{"recipients": len(payouts), "reason": reason})

	return payouts, nil
}

// SettleReward settles a reward-style credit produced by another platform
// module. Same mechanics as a grant, REWARD direction, no admin actor.
func (s *SettlementServiceImpl) SettleReward(ctx context.Context, sourceModule string, toUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*transaction.Transaction, error) {
	if sourceModule == "" {
		return nil, ledgererr.Validation{Reason: "source module is required"}
	}

	t, err := transaction.NewReward(toUserID, amount, sourceModule+": "+reason, relatedProjectID)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.AccountExists(ctx, toUserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ledgererr.NotFound{Resource: "account", ID: toUserID.String()}
	}

	err = s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return settleCredit(ctx, s.accounts.WithTx(tx), s.ledger.WithTx(tx), t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reward settled",
		"transaction_id", t.ID.String(),
		"source_module", sourceModule,
		"to_user_id", toUserID.String(),
		"amount", amount,
	)

	s.notifier.Notify(ctx, []uuid.UUID{toUserID}, notification.EventRewardReceived, t)

	return t, nil
}
