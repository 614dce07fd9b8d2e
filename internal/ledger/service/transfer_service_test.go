package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/partnerhub/token-ledger/internal/domain/account"
	"github.com/partnerhub/token-ledger/internal/domain/directory"
	"github.com/partnerhub/token-ledger/internal/domain/ledgererr"
	"github.com/partnerhub/token-ledger/internal/domain/notification"
	"github.com/partnerhub/token-ledger/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type transferFixture struct {
	accounts *MockAccountRepository
	ledger   *MockTransactionRepository
	users    *MockUserDirectory
	projects *MockProjectRegistry
	notifier *MockNotifier
	auditor  *MockAuditRecorder
	svc      TransferService
}

func newTransferFixture() *transferFixture {
	f := &transferFixture{
		accounts: new(MockAccountRepository),
		ledger:   new(MockTransactionRepository),
		users:    new(MockUserDirectory),
		projects: new(MockProjectRegistry),
		notifier: new(MockNotifier),
		auditor:  new(MockAuditRecorder),
	}
	f.svc = NewTransferService(
		testLogger(),
		&stubTxRunner{tx: new(MockTx)},
		f.accounts,
		f.ledger,
		f.users,
		f.projects,
		f.notifier,
		f.auditor,
	)
	return f
}

func pendingTransfer(fromID, toID uuid.UUID, amount int64) *transaction.Transaction {
	t, err := transaction.NewTransfer(fromID, toID, amount, "design work", nil)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCreateTransfer(t *testing.T) {
	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()
	adminID := uuid.New()

	t.Run("creates a pending transfer without touching balances", func(t *testing.T) {
		f := newTransferFixture()
		sender := &account.Account{UserID: fromID, Balance: 500, Version: 1}

		f.users.On("UserExists", mock.Anything, toID).Return(true, nil)
		f.users.On("AccountExists", mock.Anything, toID).Return(true, nil)
		f.accounts.On("LockForUpdate", mock.Anything, fromID).Return(sender, nil)
		f.ledger.On("Create", mock.Anything, mock.AnythingOfType("*transaction.Transaction")).Return(nil)
		f.users.On("AdminIDs", mock.Anything).Return([]uuid.UUID{adminID}, nil)
		f.notifier.On("Notify", mock.Anything, []uuid.UUID{adminID}, notification.EventTransferCreated, mock.Anything).Return()
		f.auditor.On("Record", mock.Anything, mock.Anything).Return(nil)

		created, err := f.svc.CreateTransfer(ctx, fromID, toID, 300, "design work", nil)

		require.NoError(t, err)
		assert.Equal(t, transaction.StatusPendingAdminApproval, created.Status)
		assert.Equal(t, transaction.DirectionTransfer, created.Direction)
		assert.Equal(t, int64(500), sender.Balance)
		f.accounts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.ledger.AssertExpectations(t)
		f.notifier.AssertExpectations(t)
	})

	t.Run("fails when the receiver does not exist", func(t *testing.T) {
		f := newTransferFixture()
		f.users.On("UserExists", mock.Anything, toID).Return(false, nil)

		_, err := f.svc.CreateTransfer(ctx, fromID, toID, 300, "design work", nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, ledgererr.NotFound{})
		var nf ledgererr.NotFound
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "user", nf.Resource)
		f.ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("fails when the receiver has no account", func(t *testing.T) {
		f := newTransferFixture()
		f.users.On("UserExists", mock.Anything, toID).Return(true, nil)
		f.users.On("AccountExists", mock.Anything, toID).Return(false, nil)

		_, err := f.svc.CreateTransfer(ctx, fromID, toID, 300, "design work", nil)

		var nf ledgererr.NotFound
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "account", nf.Resource)
	})

	t.Run("fails when the gross balance does not cover the amount", func(t *testing.T) {
		f := newTransferFixture()
		sender := &account.Account{UserID: fromID, Balance: 100, Version: 1}

		f.users.On("UserExists", mock.Anything, toID).Return(true, nil)
		f.users.On("AccountExists", mock.Anything, toID).Return(true, nil)
		f.accounts.On("LockForUpdate", mock.Anything, fromID).Return(sender, nil)

		_, err := f.svc.CreateTransfer(ctx, fromID, toID, 300, "design work", nil)

		assert.ErrorIs(t, err, ledgererr.InsufficientBalance{})
		f.ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects a self transfer before any lookup", func(t *testing.T) {
		f := newTransferFixture()

		_, err := f.svc.CreateTransfer(ctx, fromID, fromID, 300, "design work", nil)

		assert.ErrorIs(t, err, ledgererr.Validation{})
		f.users.AssertNotCalled(t, "UserExists", mock.Anything, mock.Anything)
	})

	t.Run("refuses a project that has not passed review", func(t *testing.T) {
		f := newTransferFixture()
		projectID := uuid.New()

		f.users.On("UserExists", mock.Anything, toID).Return(true, nil)
		f.users.On("AccountExists", mock.Anything, toID).Return(true, nil)
		f.projects.On("GetProjectRestriction", mock.Anything, projectID).
			Return(&directory.ProjectRestriction{ReviewApproved: false}, nil)

		_, err := f.svc.CreateTransfer(ctx, fromID, toID, 300, "design work", &projectID)

		assert.ErrorIs(t, err, ledgererr.Validation{})
		f.accounts.AssertNotCalled(t, "LockForUpdate", mock.Anything, mock.Anything)
	})

	t.Run("returns the transfer even when admin lookup fails", func(t *testing.T) {
		f := newTransferFixture()
		sender := &account.Account{UserID: fromID, Balance: 500, Version: 1}

		f.users.On("UserExists", mock.Anything, toID).Return(true, nil)
		f.users.On("AccountExists", mock.Anything, toID).Return(true, nil)
		f.accounts.On("LockForUpdate", mock.Anything, fromID).Return(sender, nil)
		f.ledger.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.users.On("AdminIDs", mock.Anything).Return(nil, errors.New("directory down"))
		f.auditor.On("Record", mock.Anything, mock.Anything).Return(nil)

		created, err := f.svc.CreateTransfer(ctx, fromID, toID, 300, "design work", nil)

		require.NoError(t, err)
		assert.NotNil(t, created)
		f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAdminReviewTransfer(t *testing.T) {
	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()
	adminID := uuid.New()

	t.Run("approval moves the transfer to receiver confirmation", func(t *testing.T) {
		f := newTransferFixture()
		pending := pendingTransfer(fromID, toID, 300)

		f.ledger.On("LockByID", mock.Anything, pending.ID).Return(pending, nil)
		f.ledger.On("UpdateTransition", mock.Anything, pending.ID, transaction.StatusPendingAdminApproval,
			mock.MatchedBy(func(c transaction.Transition) bool {
				return c.Status == transaction.StatusPendingReceiverConfirm && c.AdminUserID != nil && *c.AdminUserID == adminID
			})).Return(nil)
		f.notifier.On("Notify", mock.Anything, []uuid.UUID{toID}, notification.EventTransferApproved, mock.Anything).Return()
		f.auditor.On("Record", mock.Anything, mock.Anything).Return(nil)

		reviewed, err := f.svc.AdminReviewTransfer(ctx, pending.ID, adminID, true, "looks fine")

		require.NoError(t, err)
		assert.Equal(t, transaction.StatusPendingReceiverConfirm, reviewed.Status)
		assert.Equal(t, adminID, *reviewed.AdminUserID)
		assert.Nil(t, reviewed.CompletedAt)
		f.ledger.AssertExpectations(t)
	})

	t.Run("rejection is terminal", func(t *testing.T) {
		f := newTransferFixture()
		pending := pendingTransfer(fromID, toID, 300)

		f.ledger.On("LockByID", mock.Anything, pending.ID).Return(pending, nil)
		f.ledger.On("UpdateTransition", mock.Anything, pending.ID, transaction.StatusPendingAdminApproval,
			mock.MatchedBy(func(c transaction.Transition) bool {
				return c.Status == transaction.StatusRejected && c.CompletedAt != nil
			})).Return(nil)
		f.notifier.On("Notify", mock.Anything, []uuid.UUID{fromID}, notification.EventTransferRejected, mock.Anything).Return()
		f.auditor.On("Record", mock.Anything, mock.Anything).Return(nil)

		reviewed, err := f.svc.AdminReviewTransfer(ctx, pending.ID, adminID, false, "no supporting project")

		require.NoError(t, err)
		assert.Equal(t, transaction.StatusRejected, reviewed.Status)
		assert.NotNil(t, reviewed.CompletedAt)
	})

	t.Run("fails when the transfer already left admin review", func(t *testing.T) {
		f := newTransferFixture()
		approved := pendingTransfer(fromID, toID, 300)
		approved.Status = transaction.StatusPendingReceiverConfirm

		f.ledger.On("LockByID", mock.Anything, approved.ID).Return(approved, nil)

		_, err := f.svc.AdminReviewTransfer(ctx, approved.ID, adminID, true, "")

		assert.ErrorIs(t, err, ledgererr.InvalidState{})
		f.ledger.AssertNotCalled(t, "UpdateTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fails on a non-transfer row", func(t *testing.T) {
		f := newTransferFixture()
		grant, err := transaction.NewGrant(adminID, toID, 100, "bonus", nil)
		require.NoError(t, err)

		f.ledger.On("LockByID", mock.Anything, grant.ID).Return(grant, nil)

		_, err = f.svc.AdminReviewTransfer(ctx, grant.ID, adminID, true, "")

		assert.ErrorIs(t, err, ledgererr.InvalidState{})
	})

	t.Run("propagates a lost transition race", func(t *testing.T) {
		f := newTransferFixture()
		pending := pendingTransfer(fromID, toID, 300)

		f.ledger.On("LockByID", mock.Anything, pending.ID).Return(pending, nil)
		f.ledger.On("UpdateTransition", mock.Anything, pending.ID, transaction.StatusPendingAdminApproval, mock.Anything).
			Return(transaction.ErrTransitionConflict{TransactionID: pending.ID})

		_, err := f.svc.AdminReviewTransfer(ctx, pending.ID, adminID, true, "")

		var conflict transaction.ErrTransitionConflict
		assert.ErrorAs(t, err, &conflict)
		f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReceiverConfirm(t *testing.T) {
	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()

	approvedTransfer := func(amount int64) *transaction.Transaction {
		tr := pendingTransfer(fromID, toID, amount)
		tr.Status = transaction.StatusPendingReceiverConfirm
		return tr
	}

	t.Run("acceptance settles both balances atomically", func(t *testing.T) {
		f := newTransferFixture()
		tr := approvedTransfer(300)
		sender := &account.Account{UserID: fromID, Balance: 500, Version: 1}
		receiver := &account.Account{UserID: toID, Balance: 50, Version: 1}

		f.ledger.On("LockByID", mock.Anything, tr.ID).Return(tr, nil)
		f.accounts.On("LockForUpdate", mock.Anything, fromID).Return(sender, nil)
		f.accounts.On("LockForUpdate", mock.Anything, toID).Return(receiver, nil)
		f.accounts.On("Update", mock.Anything, sender).Return(nil)
		f.accounts.On("Update", mock.Anything, receiver).Return(nil)
		f.ledger.On("UpdateTransition", mock.Anything, tr.ID, transaction.StatusPendingReceiverConfirm,
			mock.MatchedBy(func(c transaction.Transition) bool {
				return c.Status == transaction.StatusCompleted && c.CompletedAt != nil
			})).Return(nil)
		f.notifier.On("Notify", mock.Anything, []uuid.UUID{fromID, toID}, notification.EventTransferCompleted, mock.Anything).Return()
		f.auditor.On("Record", mock.Anything, mock.Anything).Return(nil)

		confirmed, err := f.svc.ReceiverConfirm(ctx, tr.ID, toID, true, "thanks")

		require.NoError(t, err)
		assert.Equal(t, transaction.StatusCompleted, confirmed.Status)
		assert.Equal(t, int64(200), sender.Balance)
		assert.Equal(t, int64(350), receiver.Balance)
		f.accounts.AssertExpectations(t)
		f.ledger.AssertExpectations(t)
	})

	t.Run("decline returns the funds by never taking them", func(t *testing.T) {
		f := newTransferFixture()
		tr := approvedTransfer(300)

		f.ledger.On("LockByID", mock.Anything, tr.ID).Return(tr, nil)
		f.ledger.On("UpdateTransition", mock.Anything, tr.ID, transaction.StatusPendingReceiverConfirm,
			mock.MatchedBy(func(c transaction.Transition) bool {
				return c.Status == transaction.StatusRejected
			})).Return(nil)
		f.notifier.On("Notify", mock.Anything, []uuid.UUID{fromID}, notification.EventTransferDeclined, mock.Anything).Return()
		f.auditor.On("Record", mock.Anything, mock.Anything).Return(nil)

		confirmed, err := f.svc.ReceiverConfirm(ctx, tr.ID, toID, false, "wrong amount")

		require.NoError(t, err)
		assert.Equal(t, transaction.StatusRejected, confirmed.Status)
		f.accounts.AssertNotCalled(t, "LockForUpdate", mock.Anything, mock.Anything)
	})

	t.Run("only the recorded receiver may confirm", func(t *testing.T) {
		f := newTransferFixture()
		tr := approvedTransfer(300)
		stranger := uuid.New()

		f.ledger.On("LockByID", mock.Anything, tr.ID).Return(tr, nil)

		_, err := f.svc.ReceiverConfirm(ctx, tr.ID, stranger, true, "")

		assert.ErrorIs(t, err, ledgererr.Forbidden{})
	})

	t.Run("a stranger on a settled transfer still gets forbidden", func(t *testing.T) {
		f := newTransferFixture()
		tr := approvedTransfer(300)
		tr.Status = transaction.StatusCompleted

		f.ledger.On("LockByID", mock.Anything, tr.ID).Return(tr, nil)

		_, err := f.svc.ReceiverConfirm(ctx, tr.ID, uuid.New(), true, "")

		assert.ErrorIs(t, err, ledgererr.Forbidden{})
	})

	t.Run("fails when the transfer is not awaiting confirmation", func(t *testing.T) {
		f := newTransferFixture()
		tr := pendingTransfer(fromID, toID, 300)

		f.ledger.On("LockByID", mock.Anything, tr.ID).Return(tr, nil)

		_, err := f.svc.ReceiverConfirm(ctx, tr.ID, toID, true, "")

		assert.ErrorIs(t, err, ledgererr.InvalidState{})
	})

	t.Run("acceptance fails when the sender balance dropped meanwhile", func(t *testing.T) {
		f := newTransferFixture()
		tr := approvedTransfer(300)
		sender := &account.Account{UserID: fromID, Balance: 100, Version: 3}
		receiver := &account.Account{UserID: toID, Balance: 50, Version: 1}

		f.ledger.On("LockByID", mock.Anything, tr.ID).Return(tr, nil)
		f.accounts.On("LockForUpdate", mock.Anything, fromID).Return(sender, nil)
		f.accounts.On("LockForUpdate", mock.Anything, toID).Return(receiver, nil)

		_, err := f.svc.ReceiverConfirm(ctx, tr.ID, toID, true, "")

		assert.ErrorIs(t, err, ledgererr.InsufficientBalance{})
		assert.Equal(t, int64(50), receiver.Balance)
		f.accounts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.ledger.AssertNotCalled(t, "UpdateTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCancelTransfer(t *testing.T) {
	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()
	adminID := uuid.New()

	t.Run("initiator withdraws a transfer still under review", func(t *testing.T) {
		f := newTransferFixture()
		tr := pendingTransfer(fromID, toID, 300)

		f.ledger.On("LockByID", mock.Anything, tr.ID).Return(tr, nil)
		f.ledger.On("UpdateTransition", mock.Anything, tr.ID, transaction.StatusPendingAdminApproval,
			mock.MatchedBy(func(c transaction.Transition) bool {
				return c.Status == transaction.StatusCancelled && c.CompletedAt != nil
			})).Return(nil)
		f.users.On("AdminIDs", mock.Anything).Return([]uuid.UUID{adminID}, nil)
		f.notifier.On("Notify", mock.Anything, []uuid.UUID{adminID}, notification.EventTransferCancelled, mock.Anything).Return()
		f.auditor.On("Record", mock.Anything, mock.Anything).Return(nil)

		cancelled, err := f.svc.CancelTransfer(ctx, tr.ID, fromID, "changed my mind")

		require.NoError(t, err)
		assert.Equal(t, transaction.StatusCancelled, cancelled.Status)
	})

	t.Run("only the initiator may cancel", func(t *testing.T) {
		f := newTransferFixture()
		tr := pendingTransfer(fromID, toID, 300)

		f.ledger.On("LockByID", mock.Anything, tr.ID).Return(tr, nil)

		_, err := f.svc.CancelTransfer(ctx, tr.ID, toID, "")

		assert.ErrorIs(t, err, ledgererr.Forbidden{})
	})

	t.Run("fails once the transfer passed admin review", func(t *testing.T) {
		f := newTransferFixture()
		tr := pendingTransfer(fromID, toID, 300)
		tr.Status = transaction.StatusPendingReceiverConfirm

		f.ledger.On("LockByID", mock.Anything, tr.ID).Return(tr, nil)

		_, err := f.svc.CancelTransfer(ctx, tr.ID, fromID, "")

		assert.ErrorIs(t, err, ledgererr.InvalidState{})
		f.ledger.AssertNotCalled(t, "UpdateTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
