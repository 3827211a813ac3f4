package availability

import (
	"staybook/internal/app/dto"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
)

func Register(qs *queries.InMemoryBus, factory uow.UoWFactory) {
	queries.RegisterHandler[GetAvailabilityQuery, *dto.Availability](qs, GetAvailabilityKey, &GetAvailabilityHandler{UoWFactory: factory})
}
