// Package project models the portal's projects and their nine-stage
// production pipeline.
package project

import (
	"encoding/json"
	"fmt"
	"time"

	"projectflow/gateway"
	"projectflow/storage"
)

// Status is one of the nine totally ordered production stages. The wire
// values are the Portuguese labels stored in the remote table.
type Status string

const (
	StatusPaymentMade          Status = "Pagamento Feito"
	StatusMeasurementDone      Status = "Medida Fina Feita"
	StatusTechDrawingsApproved Status = "Caderno Técnico Aprovado"
	StatusProductionStarted    Status = "Produção Iniciada"
	StatusDeliveryScheduled    Status = "Entrega Agendada"
	StatusDeliveryMade         Status = "Entrega Feita"
	StatusAssemblyFinished     Status = "Montagem Finalizada"
	StatusQualityControl       Status = "Controle de Qualidade"
	StatusCompleted            Status = "Concluído"
)

// StatusOrder lists the stages in pipeline order. The index drives progress
// display and delivery-date gating.
var StatusOrder = []Status{
	StatusPaymentMade,
	StatusMeasurementDone,
	StatusTechDrawingsApproved,
	StatusProductionStarted,
	StatusDeliveryScheduled,
	StatusDeliveryMade,
	StatusAssemblyFinished,
	StatusQualityControl,
	StatusCompleted,
}

// Index returns the stage's position in the pipeline, or -1 for an unknown
// status.
func (s Status) Index() int {
	for i, st := range StatusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether the status is one of the nine stages.
func (s Status) Valid() bool {
	return s.Index() >= 0
}

// Reached reports whether the stage is at or past the given stage.
func (s Status) Reached(other Status) bool {
	i, j := s.Index(), other.Index()
	return i >= 0 && j >= 0 && i >= j
}

// Progress returns the completion percentage the stage represents.
func (s Status) Progress() int {
	i := s.Index()
	if i < 0 {
		return 0
	}
	return (i + 1) * 100 / len(StatusOrder)
}

// Project mirrors a row of the projects table. ClientUID references the
// owning client's profile id.
type Project struct {
	ID               string                   `json:"id"`
	Name             string                   `json:"name"`
	Description      string                   `json:"description"`
	ClientUID        string                   `json:"clientuid"`
	Status           Status                   `json:"status"`
	CreatedAt        time.Time                `json:"created_at"`
	Price            float64                  `json:"price"`
	PaymentCondition string                   `json:"payment_condition"`
	Files            []storage.FileDescriptor `json:"files"`
	DeliveryDate     *string                  `json:"delivery_date,omitempty"`
}

// DeliveryDateVisible reports whether the delivery date is meaningful yet:
// it only is once the project has reached the fine-measurement stage.
func (p Project) DeliveryDateVisible() bool {
	return p.Status.Reached(StatusMeasurementDone)
}

// Validate checks the invariants every project must satisfy.
func (p Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("project: missing id")
	}
	if p.ClientUID == "" {
		return fmt.Errorf("project: missing client id")
	}
	if !p.Status.Valid() {
		return fmt.Errorf("project: invalid status %q", p.Status)
	}
	if p.Price < 0 {
		return fmt.Errorf("project: negative price")
	}
	for _, f := range p.Files {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("project: file: %w", err)
		}
	}
	return nil
}

// FromRow parses and validates an untyped gateway row into a Project.
func FromRow(row gateway.Row) (Project, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return Project{}, fmt.Errorf("project: encode row: %w", err)
	}
	var p Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return Project{}, fmt.Errorf("project: decode row: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Row converts the project back into the gateway's untyped shape.
func (p Project) Row() gateway.Row {
	raw, _ := json.Marshal(p)
	var row gateway.Row
	_ = json.Unmarshal(raw, &row)
	return row
}
