package reference

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/marketplace/services/marketplace/internal/domain"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for _, kind := range domain.Kinds {
		id := uuid.NewString()

		ref, err := Encode(kind, id)
		require.NoError(t, err)

		d, err := Decode(ref)
		require.NoError(t, err)
		assert.Equal(t, kind, d.Kind)
		assert.Equal(t, id, d.Value)
		assert.Equal(t, FormEntity, d.Form)
	}
}

func TestEncode_Tags(t *testing.T) {
	id := "7f1c2d4e-0b6a-4c1e-9a3f-2b8d5e6f7a90"

	ref, err := Encode(domain.KindSellerApplication, id)
	require.NoError(t, err)
	assert.Equal(t, "seller_fee-"+id, ref)

	ref, err = Encode(domain.KindAdCampaign, id)
	require.NoError(t, err)
	assert.Equal(t, "ad-"+id, ref)
}

func TestEncode_RejectsNonUUID(t *testing.T) {
	_, err := Encode(domain.KindOrder, "42")
	assert.ErrorIs(t, err, domain.ErrMalformedReference)
}

func TestDecode_LegacyOrderTag(t *testing.T) {
	id := uuid.NewString()
	d, err := Decode("ec-" + id)
	require.NoError(t, err)
	assert.Equal(t, domain.KindOrder, d.Kind)
	assert.Equal(t, id, d.Value)
}

func TestDecode_Session(t *testing.T) {
	d, err := Decode("ad:cs_test_a1B2c3")
	require.NoError(t, err)
	assert.Equal(t, domain.KindAdCampaign, d.Kind)
	assert.Equal(t, "cs_test_a1B2c3", d.Value)
	assert.Equal(t, FormSession, d.Form)

	ref, err := EncodeSession(domain.KindAdCampaign, "cs_test_a1B2c3")
	require.NoError(t, err)
	assert.Equal(t, "ad:cs_test_a1B2c3", ref)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []string{
		"",
		"order",
		"order-",
		"-" + uuid.NewString(),
		"invoice-" + uuid.NewString(),
		"order-not-a-uuid",
		"ad:bad session",
	}
	for _, ref := range tests {
		t.Run(ref, func(t *testing.T) {
			_, err := Decode(ref)
			assert.ErrorIs(t, err, domain.ErrMalformedReference)
		})
	}
}

func TestCandidates_Session(t *testing.T) {
	got := Candidates("cs_test_123")
	assert.Equal(t, []string{
		"cs_test_123",
		"order:cs_test_123",
		"seller_fee:cs_test_123",
		"ad:cs_test_123",
	}, got)
}

func TestCandidates_TaggedInput(t *testing.T) {
	got := Candidates("ad:cs_test_123")
	assert.Contains(t, got, "ad:cs_test_123")
	assert.Contains(t, got, "cs_test_123")
	assert.Contains(t, got, "order:cs_test_123")
}

func TestCandidates_EntityForm(t *testing.T) {
	id := uuid.NewString()
	got := Candidates("seller_fee-" + id)
	assert.Equal(t, "seller_fee-"+id, got[0])
	assert.Contains(t, got, id)
	assert.Contains(t, got, "order-"+id)
	assert.Contains(t, got, "ad-"+id)
}

func TestCandidates_Empty(t *testing.T) {
	assert.Nil(t, Candidates("  "))
}
