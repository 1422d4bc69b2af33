package memory

import (
	"github.com/tantawy/erp/internal/service/invoice"
)

// Compile-time interface assertions documenting what the memory backend satisfies.
var (
	_ invoice.Repo = (*Store)(nil)
	_ invoice.DB   = (*Store)(nil)
	_ invoice.Tx   = (*Tx)(nil)
)
