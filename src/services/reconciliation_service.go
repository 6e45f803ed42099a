// backend/src/services/reconciliation_service.go
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/logger"
	"github.com/username/contaflow/src/model"
	"github.com/username/contaflow/src/models"
)

const (
	ckOpenEntities         = "recon_open_entities_business_%d"
	OpenEntitiesExpiration = 5 * time.Minute
	openEntitiesCleanup    = 10 * time.Minute
)

type reconciliationServiceImpl struct {
	db          *sql.DB
	provider    EntityProvider
	ledger      *MatchLedger
	entityCache *cache.Cache
	cfg         ScoringConfig
}

func NewReconciliationService(db *sql.DB, provider EntityProvider, ledger *MatchLedger, cfg ScoringConfig) ReconciliationService {
	return &reconciliationServiceImpl{
		db:          db,
		provider:    provider,
		ledger:      ledger,
		entityCache: cache.New(OpenEntitiesExpiration, openEntitiesCleanup),
		cfg:         cfg,
	}
}

// Suggest scores the business's open entities against one transaction and
// persists the ranked result as replaceable suggested rows. Re-running it
// without intervening state changes returns the same ordered suggestions.
func (s *reconciliationServiceImpl) Suggest(ctx context.Context, businessID, transactionID int64) ([]models.ReconciliationMatch, error) {
	txn, err := model.GetTransactionByID(s.db, businessID, transactionID)
	if err != nil {
		return nil, err
	}
	matched, err := model.HasMatchedRecord(s.db, transactionID)
	if err != nil {
		return nil, err
	}
	if matched {
		return nil, apperrors.ErrAlreadyMatched
	}

	entities, err := s.openEntities(businessID)
	if err != nil {
		return nil, err
	}

	suggestions := scoreCandidates(*txn, entities, s.cfg)
	if err := model.ReplaceSuggestions(s.db, transactionID, suggestions); err != nil {
		return nil, err
	}
	logger.L.Debug("Suggestions computed", "transactionID", transactionID, "candidates", len(entities), "suggestions", len(suggestions))
	return suggestions, nil
}

// Confirm promotes one suggested candidate to matched. Exactly one of two
// concurrent confirms for the same transaction wins; the loser gets
// AlreadyMatched. A transaction and its entity must share a business id —
// violations are logged as security faults.
func (s *reconciliationServiceImpl) Confirm(ctx context.Context, businessID, transactionID, matchID int64) (*models.ReconciliationMatch, error) {
	unlock := s.ledger.Lock(transactionID)
	defer unlock()

	txn, err := model.GetTransactionByID(s.db, businessID, transactionID)
	if err != nil {
		return nil, err
	}
	match, err := model.GetMatchByID(s.db, matchID)
	if err != nil {
		return nil, err
	}
	if match.TransactionID != transactionID {
		return nil, apperrors.Wrap(apperrors.KindNotFound, "NotFound",
			fmt.Errorf("match %d does not belong to transaction %d", matchID, transactionID))
	}

	entity, err := s.provider.Entity(match.EntityType, match.EntityID)
	if err != nil {
		return nil, err
	}
	if entity.BusinessID != txn.BusinessID {
		logger.L.Error("SECURITY: cross-business reconciliation attempt",
			"transactionID", transactionID, "transactionBusiness", txn.BusinessID,
			"entityID", entity.ID, "entityBusiness", entity.BusinessID)
		return nil, apperrors.ErrCrossBusiness
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	defer dbTx.Rollback()

	if err := model.PromoteMatch(dbTx, transactionID, matchID); err != nil {
		return nil, err
	}
	if err := model.DiscardSiblingSuggestions(dbTx, transactionID, matchID); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}

	// Signal the owning entity after the match is durable. Settlement carries
	// the transaction's amount and date; how the provider updates paid/settled
	// status is its own concern.
	settlement := models.Settlement{
		EntityType: match.EntityType,
		EntityID:   match.EntityID,
		Amount:     txn.AbsAmount(),
		Date:       txn.Date,
	}
	if err := s.provider.NotifySettlement(settlement); err != nil {
		logger.L.Error("Settlement notification failed", "entityID", match.EntityID, "error", err)
	}
	s.invalidateEntityCache(businessID)

	confirmed, err := model.GetMatchByID(s.db, matchID)
	if err != nil {
		return nil, err
	}
	logger.L.Info("Match confirmed", "transactionID", transactionID, "matchID", matchID,
		"entityType", confirmed.EntityType, "entityID", confirmed.EntityID)
	return confirmed, nil
}

// Unmatch reverts a confirmed match: the matched record is removed and the
// provider is told to reverse the settlement. Old suggestions stay discarded;
// the caller re-runs Suggest.
func (s *reconciliationServiceImpl) Unmatch(ctx context.Context, businessID, transactionID int64) error {
	unlock := s.ledger.Lock(transactionID)
	defer unlock()

	txn, err := model.GetTransactionByID(s.db, businessID, transactionID)
	if err != nil {
		return err
	}

	matches, err := model.ListMatchesForTransaction(s.db, transactionID)
	if err != nil {
		return err
	}
	var matchedRecord *models.ReconciliationMatch
	for i := range matches {
		if matches[i].Status == models.MatchStatusMatched {
			matchedRecord = &matches[i]
			break
		}
	}
	if matchedRecord == nil {
		return apperrors.Wrap(apperrors.KindNotFound, "NotFound",
			fmt.Errorf("transaction %d has no confirmed match", transactionID))
	}

	deleted, err := model.DeleteMatchedRecord(s.db, transactionID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.ErrNotFound
	}

	reversal := models.Settlement{
		EntityType: matchedRecord.EntityType,
		EntityID:   matchedRecord.EntityID,
		Amount:     txn.AbsAmount(),
		Date:       txn.Date,
	}
	if err := s.provider.NotifyUnsettlement(matchedRecord.EntityType, matchedRecord.EntityID, reversal); err != nil {
		logger.L.Error("Unsettlement notification failed", "entityID", matchedRecord.EntityID, "error", err)
	}
	s.invalidateEntityCache(businessID)

	logger.L.Info("Match reverted", "transactionID", transactionID, "entityID", matchedRecord.EntityID)
	return nil
}

// Ignore marks all current suggestions for the transaction ignored.
func (s *reconciliationServiceImpl) Ignore(ctx context.Context, businessID, transactionID int64) error {
	unlock := s.ledger.Lock(transactionID)
	defer unlock()

	if _, err := model.GetTransactionByID(s.db, businessID, transactionID); err != nil {
		return err
	}
	return model.IgnoreSuggestions(s.db, transactionID)
}

func (s *reconciliationServiceImpl) ListUnmatched(ctx context.Context, businessID int64, filter model.TransactionFilter) ([]models.BankTransaction, error) {
	return model.ListUnmatchedTransactions(s.db, businessID, filter)
}

// openEntities serves the provider snapshot through a short-lived cache; the
// cache is invalidated whenever a confirm or unmatch changes outstanding
// amounts so suggestions never score against stale balances for long.
func (s *reconciliationServiceImpl) openEntities(businessID int64) ([]models.OpenEntity, error) {
	cacheKey := fmt.Sprintf(ckOpenEntities, businessID)
	if cached, found := s.entityCache.Get(cacheKey); found {
		return cached.([]models.OpenEntity), nil
	}
	entities, err := s.provider.OpenEntities(businessID)
	if err != nil {
		return nil, err
	}
	s.entityCache.Set(cacheKey, entities, cache.DefaultExpiration)
	return entities, nil
}

func (s *reconciliationServiceImpl) invalidateEntityCache(businessID int64) {
	s.entityCache.Delete(fmt.Sprintf(ckOpenEntities, businessID))
}
