package pricing

import (
	"testing"

	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackage_ProvisioningMeta(t *testing.T) {
	pkg := &Package{
		ID:   "pkg_1",
		Name: "Starter",
		Meta: map[string]interface{}{
			"module":   "vps",
			"hostname": "web01",
			// storage hands numbers back as float64
			"disk_gb": float64(80),
			"managed": true,
		},
	}

	meta, err := pkg.ProvisioningMeta()
	require.NoError(t, err)
	assert.Equal(t, ProvisioningMeta{
		Module:   "vps",
		Hostname: "web01",
		DiskGB:   80,
		Managed:  true,
	}, meta)

	// a package without meta decodes to the zero value
	bare := &Package{ID: "pkg_2", Name: "Bare"}
	meta, err = bare.ProvisioningMeta()
	require.NoError(t, err)
	assert.Equal(t, ProvisioningMeta{}, meta)
}

func TestPackagePricing_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pricing PackagePricing
		wantErr bool
	}{
		{
			name: "valid monthly pricing",
			pricing: PackagePricing{
				ID:       "pp_1",
				Term:     1,
				Period:   types.BillingPeriodMonth,
				Currency: "usd",
			},
		},
		{
			name: "zero term requires onetime period",
			pricing: PackagePricing{
				ID:       "pp_2",
				Term:     0,
				Period:   types.BillingPeriodMonth,
				Currency: "usd",
			},
			wantErr: true,
		},
		{
			name: "term above the cap",
			pricing: PackagePricing{
				ID:       "pp_3",
				Term:     maxTerm + 1,
				Period:   types.BillingPeriodMonth,
				Currency: "usd",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pricing.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
				return
			}
			require.NoError(t, err)
		})
	}
}
