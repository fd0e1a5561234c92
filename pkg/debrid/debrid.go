package debrid

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bdashore3/Ferrite/internal/config"
	"github.com/bdashore3/Ferrite/pkg/debrid/alldebrid"
	"github.com/bdashore3/Ferrite/pkg/debrid/premiumize"
	"github.com/bdashore3/Ferrite/pkg/debrid/realdebrid"
	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

// NewClient builds the provider client named by the config entry.
func NewClient(pc config.Provider, logger zerolog.Logger) (types.Client, error) {
	switch types.Provider(pc.Name) {
	case types.ProviderRealDebrid:
		return realdebrid.New(pc, logger), nil
	case types.ProviderAllDebrid:
		return alldebrid.New(pc, logger), nil
	case types.ProviderPremiumize:
		return premiumize.New(pc, logger), nil
	default:
		return nil, fmt.Errorf("unknown debrid provider: %s", pc.Name)
	}
}
