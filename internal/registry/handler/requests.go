package handler

import (
	"medchain/pkg/domain"
	dErrors "medchain/pkg/domain-errors"
)

// RegisterBatchRequest is the wire shape for POST /registry/batches.
type RegisterBatchRequest struct {
	Hash    string `json:"hash"`
	BatchID string `json:"batch_id"`
}

// ParsedHash validates the hash field. A zero hash parses fine here; the
// ledger rejects it so validation stays in one place.
func (r RegisterBatchRequest) ParsedHash() (domain.Hash, error) {
	hash, err := domain.ParseHash(r.Hash)
	if err != nil {
		return domain.Hash{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid hash")
	}
	return hash, nil
}

// ReportFakeRequest is the wire shape for report-fake calls.
type ReportFakeRequest struct {
	Reason string `json:"reason"`
}

// RecordPredictionRequest is the wire shape for POST /registry/predictions.
type RecordPredictionRequest struct {
	Hash        string `json:"hash"`
	DrugName    string `json:"drug_name"`
	Location    string `json:"location"`
	Probability uint32 `json:"probability"`
}

// ParsedHash validates the hash field.
func (r RecordPredictionRequest) ParsedHash() (domain.Hash, error) {
	hash, err := domain.ParseHash(r.Hash)
	if err != nil {
		return domain.Hash{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid hash")
	}
	return hash, nil
}

// RoleRequest is the wire shape for role administration calls.
type RoleRequest struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

// Parsed validates both fields.
func (r RoleRequest) Parsed() (domain.Identity, domain.Role, error) {
	identity, err := domain.ParseIdentity(r.Identity)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid identity")
	}
	role, err := domain.ParseRole(r.Role)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid role")
	}
	return identity, role, nil
}
