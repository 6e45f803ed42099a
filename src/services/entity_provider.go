// backend/src/services/entity_provider.go
package services

import (
	"database/sql"

	"github.com/username/contaflow/src/model"
	"github.com/username/contaflow/src/models"
)

// sqlEntityProvider serves open invoices and expenses from the application
// database. In deployments where invoicing lives in a separate system this is
// the piece that gets swapped out; the reconciliation engine only depends on
// the EntityProvider contract.
type sqlEntityProvider struct {
	db *sql.DB
}

func NewSQLEntityProvider(db *sql.DB) EntityProvider {
	return &sqlEntityProvider{db: db}
}

func (p *sqlEntityProvider) OpenEntities(businessID int64) ([]models.OpenEntity, error) {
	return model.ListOpenEntities(p.db, businessID)
}

func (p *sqlEntityProvider) Entity(entityType models.EntityType, id int64) (*models.OpenEntity, error) {
	return model.GetOpenEntity(p.db, entityType, id)
}

func (p *sqlEntityProvider) NotifySettlement(s models.Settlement) error {
	return model.MarkEntitySettled(p.db, s)
}

func (p *sqlEntityProvider) NotifyUnsettlement(entityType models.EntityType, id int64, s models.Settlement) error {
	return model.ReopenEntity(p.db, entityType, id, s.Amount)
}
