package service

import (
	"bytes"
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

// TransferServiceImpl implements the TransferService interface
type TransferServiceImpl struct {
	pgDB     TxRunner
	accounts account.Repository
	ledger   transaction.Repository
	users    directory.UserDirectory
	projects directory.ProjectRegistry
	notifier Notifier
	auditor  audit.Recorder
	logger   *slog.Logger
}

// NewTransferService creates a new transfer state machine service
func NewTransferService(
	logger *slog.Logger,
	pgDB TxRunner,
	accounts account.Repository,
	ledger transaction.Repository,
	users directory.UserDirectory,
	projects directory.ProjectRegistry,
	notifier Notifier,
	auditor audit.Recorder,
) TransferService {
	return &TransferServiceImpl{
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

// checkProjectAllowed refuses project-linked transactions on projects that
// are not review-approved or have been abandoned
func checkProjectAllowed(ctx context.Context, projects directory.ProjectRegistry, projectID *uuid.UUID) error {
	if projectID == nil {
		return nil
	}

	restriction, err := projects.GetProjectRestriction(ctx, *projectID)
	if err != nil {
		return err
	}
	if !restriction.ReviewApproved {
		return ledgererr.Validation{Reason: "project has not passed review"}
	}
	if restriction.Abandoned {
		return ledgererr.Validation{Reason: "project has been abandoned"}
	}

	return nil
}

// recordAudit appends an audit record best-effort; failures are logged and
// never propagated into the settlement path
func (s *TransferServiceImpl) recordAudit(ctx context.Context, actorID uuid.UUID, action string, objectID, summary string, metadata map[string]any) {
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

// CreateTransfer validates the request, then inserts the transaction in
// PENDING_ADMIN_APPROVAL inside a database transaction that re-checks the
// sender's gross balance under a row lock. No balance is mutated; the funds
// are frozen only through the derived frozen-amount projection.
func (s *TransferServiceImpl) CreateTransfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*transaction.Transaction, error) {
	t, err := transaction.NewTransfer(fromUserID, toUserID, amount, reason, relatedProjectID)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.UserExists(ctx, toUserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ledgererr.NotFound{Resource: "user", ID: toUserID.String()}
	}

	exists, err = s.users.AccountExists(ctx, toUserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ledgererr.NotFound{Resource: "account", ID: toUserID.String()}
	}

	if err := checkProjectAllowed(ctx, s.projects, relatedProjectID); err != nil {
		return nil, err
	}

	err = s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := s.accounts.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		// Balance is re-checked under the row lock: a concurrent spend
		// between request validation and this point must not slip through.
		sender, err := accounts.LockForUpdate(ctx, fromUserID)
		if err != nil {
			return err
		}
		if !sender.CanDebit(amount) {
			return ledgererr.InsufficientBalance{UserID: fromUserID.String(), Balance: sender.Balance, Requested: amount}
		}

		return ledger.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Transfer created",
		"transaction_id", t.ID.String(),
		"from_user_id", fromUserID.String(),
		"to_user_id", toUserID.String(),
		"amount", amount,
	)

	if adminIDs, err := s.users.AdminIDs(ctx); err != nil {
		s.logger.Error("Failed to resolve admin recipients", "transaction_id", t.ID.String(), "error", err)
	} else {
		s.notifier.Notify(ctx, adminIDs, notification.EventTransferCreated, t)
	}
	s.recordAudit(ctx, fromUserID, "transfer.create", t.ID.String(), "peer transfer submitted for review",
		map[string]any{"to_user_id": toUserID.String(), "amount": amount})

	return t, nil
}

// AdminReviewTransfer approves or rejects a transfer awaiting admin review.
// The status precondition is checked under the transaction row lock, so two
// racing reviews (or a review racing a cancel) produce exactly one winner
// and the loser fails InvalidState.
func (s *TransferServiceImpl) AdminReviewTransfer(ctx context.Context, transactionID, adminID uuid.UUID, approve bool, comment string) (*transaction.Transaction, error) {
	var reviewed *transaction.Transaction

	err := s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		ledger := s.ledger.WithTx(tx)

		t, err := ledger.LockByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Direction != transaction.DirectionTransfer || t.Status != transaction.StatusPendingAdminApproval {
			return ledgererr.InvalidState{
				TransactionID: transactionID.String(),
				Current:       string(t.Status),
				Attempted:     "admin review",
			}
		}

		now := time.Now()
		change := transaction.Transition{
			AdminUserID:  &adminID,
			AdminComment: &comment,
		}
		if approve {
			change.Status = transaction.StatusPendingReceiverConfirm
		} else {
			change.Status = transaction.StatusRejected
			change.CompletedAt = &now
		}

		if err := ledger.UpdateTransition(ctx, transactionID, transaction.StatusPendingAdminApproval, change); err != nil {
			return err
		}

		t.Status = change.Status
		t.AdminUserID = &adminID
		t.AdminComment = comment
		t.CompletedAt = change.CompletedAt
		reviewed = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Transfer reviewed",
		"transaction_id", transactionID.String(),
		"admin_id", adminID.String(),
		"approved", approve,
	)

	if approve {
		s.notifier.Notify(ctx, []uuid.UUID{*reviewed.ToUserID}, notification.EventTransferApproved, reviewed)
	} else {
		s.notifier.Notify(ctx, []uuid.UUID{*reviewed.FromUserID}, notification.EventTransferRejected, reviewed)
	}
	s.recordAudit(ctx, adminID, "transfer.review", transactionID.String(), "transfer reviewed by admin",
		map[string]any{"approved": approve, "comment": comment})

	return reviewed, nil
}

// ReceiverConfirm settles or declines an approved transfer. Acceptance locks
// both accounts in deterministic order, re-checks the sender's balance under
// the lock, then debits, credits and completes in one database transaction.
// The sender's balance may legitimately have dropped since creation; in that
// case the call fails InsufficientBalance and the transfer stays in
// PENDING_RECEIVER_CONFIRM.
func (s *TransferServiceImpl) ReceiverConfirm(ctx context.Context, transactionID, receiverID uuid.UUID, accept bool, comment string) (*transaction.Transaction, error) {
	var confirmed *transaction.Transaction

	err := s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := s.accounts.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		t, err := ledger.LockByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Direction != transaction.DirectionTransfer || t.ToUserID == nil {
			return ledgererr.InvalidState{
				TransactionID: transactionID.String(),
				Current:       string(t.Status),
				Attempted:     "receiver confirm",
			}
		}
		if *t.ToUserID != receiverID {
			return ledgererr.Forbidden{ActorID: receiverID.String(), Action: "confirm transfer " + transactionID.String()}
		}
		if t.Status != transaction.StatusPendingReceiverConfirm {
			return ledgererr.InvalidState{
				TransactionID: transactionID.String(),
				Current:       string(t.Status),
				Attempted:     "receiver confirm",
			}
		}

		now := time.Now()
		change := transaction.Transition{
			ReceiverComment: &comment,
			CompletedAt:     &now,
		}

		if !accept {
			change.Status = transaction.StatusRejected
			if err := ledger.UpdateTransition(ctx, transactionID, transaction.StatusPendingReceiverConfirm, change); err != nil {
				return err
			}
			t.Status = change.Status
			t.ReceiverComment = comment
			t.CompletedAt = &now
			confirmed = t
			return nil
		}

		sender, receiver, err := lockAccountPair(ctx, accounts, *t.FromUserID, *t.ToUserID)
		if err != nil {
			return err
		}

		if err := sender.Debit(t.Amount); err != nil {
			return err
		}
		if err := receiver.Credit(t.Amount); err != nil {
			return err
		}
		if err := accounts.Update(ctx, sender); err != nil {
			return err
		}
		if err := accounts.Update(ctx, receiver); err != nil {
			return err
		}

		change.Status = transaction.StatusCompleted
		if err := ledger.UpdateTransition(ctx, transactionID, transaction.StatusPendingReceiverConfirm, change); err != nil {
			return err
		}

		t.Status = change.Status
		t.ReceiverComment = comment
		t.CompletedAt = &now
		confirmed = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Transfer confirmed",
		"transaction_id", transactionID.String(),
		"receiver_id", receiverID.String(),
		"accepted", accept,
	)

	if accept {
		s.notifier.Notify(ctx, []uuid.UUID{*confirmed.FromUserID, *confirmed.ToUserID}, notification.EventTransferCompleted, confirmed)
		if confirmed.RelatedProjectID != nil {
			s.notifier.Notify(ctx, nil, notification.EventProjectTimeline, confirmed)
		}
	} else {
		s.notifier.Notify(ctx, []uuid.UUID{*confirmed.FromUserID}, notification.EventTransferDeclined, confirmed)
	}
	s.recordAudit(ctx, receiverID, "transfer.confirm", transactionID.String(), "transfer confirmed by receiver",
		map[string]any{"accepted": accept, "comment": comment})

	return confirmed, nil
}

// CancelTransfer withdraws the initiator's own transfer while it still
// awaits admin review. No balance was ever mutated, so none is restored.
func (s *TransferServiceImpl) CancelTransfer(ctx context.Context, transactionID, userID uuid.UUID, reason string) (*transaction.Transaction, error) {
	var cancelled *transaction.Transaction

	err := s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		ledger := s.ledger.WithTx(tx)

		t, err := ledger.LockByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Direction != transaction.DirectionTransfer || t.FromUserID == nil {
			return ledgererr.InvalidState{
				TransactionID: transactionID.String(),
				Current:       string(t.Status),
				Attempted:     "cancel",
			}
		}
		if *t.FromUserID != userID {
			return ledgererr.Forbidden{ActorID: userID.String(), Action: "cancel transfer " + transactionID.String()}
		}
		if t.Status != transaction.StatusPendingAdminApproval {
			return ledgererr.InvalidState{
				TransactionID: transactionID.String(),
				Current:       string(t.Status),
				Attempted:     "cancel",
			}
		}

		now := time.Now()
		change := transaction.Transition{
			Status:      transaction.StatusCancelled,
			CompletedAt: &now,
		}
		if err := ledger.UpdateTransition(ctx, transactionID, transaction.StatusPendingAdminApproval, change); err != nil {
			return err
		}

		t.Status = change.Status
		t.CompletedAt = &now
		cancelled = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Transfer cancelled", "transaction_id", transactionID.String(), "user_id", userID.String())

	if adminIDs, err := s.users.AdminIDs(ctx); err != nil {
		s.logger.Error("Failed to resolve admin recipients", "transaction_id", transactionID.String(), "error", err)
	} else {
		s.notifier.Notify(ctx, adminIDs, notification.EventTransferCancelled, cancelled)
	}
	s.recordAudit(ctx, userID, "transfer.cancel", transactionID.String(), "transfer cancelled by initiator",
		map[string]any{"reason": reason})

	return cancelled, nil
}

// lockAccountPair locks two accounts in deterministic UserID order so that
// concurrent settlements touching the same pair cannot deadlock
func lockAccountPair(ctx context.Context, accounts account.Repository, senderID, receiverID uuid.UUID) (*account.Account, *account.Account, error) {
	first, second := senderID, receiverID
	if bytes.Compare(receiverID[:], senderID[:]) < 0 {
		first, second = receiverID, senderID
	}

	firstAcc, err := accounts.LockForUpdate(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	secondAcc, err := accounts.LockForUpdate(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if firstAcc.UserID == senderID {
		return firstAcc, secondAcc, nil
	}
	return secondAcc, firstAcc, nil
}
