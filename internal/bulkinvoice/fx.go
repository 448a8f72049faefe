package bulkinvoice

import (
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/adapter"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bulkinvoice.service",
	fx.Provide(adapter.New),
	fx.Provide(
		func(s *adapter.Store) domain.AssignmentLookup { return s },
		func(s *adapter.Store) domain.EntrySource { return s },
		func(s *adapter.Store) domain.InvoiceNumberer { return s },
		func(s *adapter.Store) domain.InvoiceWriter { return s },
		func(s *adapter.Store) domain.EntryLinker { return s },
		func(s *adapter.Store) domain.CustomerLocker { return s },
	),
	fx.Provide(service.New),
)
