package service

import (
	"github.com/roadwatch/console/internal/domain"
)

// DataRepository is re-exported from domain for convenience
type DataRepository = domain.DataRepository
