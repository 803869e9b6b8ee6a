// Package idgen produces prefixed unique identifiers, e.g. "CH-<uuid>"
// for deposit accounts and "TR-<uuid>" for transfers.
package idgen

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/haifischbank/backoffice/internal/interfaces"
)

// Well-known prefixes used across the engine.
const (
	PrefixCustomer           = "C"
	PrefixAccount            = "CH"
	PrefixTransfer           = "TR"
	PrefixCreditDisbursement = "CRD"
	PrefixFee                = "FEE"
	PrefixRepayment          = "RP"
	PrefixManualRepayment    = "MRP"
	PrefixQuarterlyFee       = "QF"
	PrefixPenalty            = "PEN"
	PrefixClosure            = "CLS"
	PrefixTimeEvent          = "TE"
)

type Generator struct{}

func New() *Generator { return &Generator{} }

func (g *Generator) NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String())
}

var _ interfaces.IDGenerator = (*Generator)(nil)
