package payments

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test_secret"

func TestParseEvent_VerifiesSignature(t *testing.T) {
	agreementID := uuid.New()
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"api_version": "2020-08-27",
		"data": {"object": {"id": "pi_1", "object": "payment_intent", "metadata": {"kind": "escrow", "agreement_id": "` + agreementID.String() + `"}}}
	}`)

	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testSecret})

	evt, err := ParseEvent(sp.Payload, sp.Header, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, EventPaymentIntentSucceeded, evt.Type)

	intent, err := DecodeIntent(evt.Object)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, KindEscrow, intent.Kind)
	assert.Equal(t, agreementID, intent.AgreementID)
	assert.Nil(t, intent.DisputeID)
}

func TestParseEvent_RejectsBadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_2","object":"event","type":"account.updated","data":{"object":{}}}`)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other"})

	_, err := ParseEvent(sp.Payload, sp.Header, testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ParseEvent(payload, "", testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecodeIntent_DisputeFee(t *testing.T) {
	agreementID, disputeID := uuid.New(), uuid.New()
	raw := []byte(`{"id":"pi_fee","object":"payment_intent","metadata":{"kind":"dispute_fee","agreement_id":"` +
		agreementID.String() + `","dispute_id":"` + disputeID.String() + `"}}`)

	intent, err := DecodeIntent(raw)
	require.NoError(t, err)
	assert.Equal(t, KindDisputeFee, intent.Kind)
	require.NotNil(t, intent.DisputeID)
	assert.Equal(t, disputeID, *intent.DisputeID)
}

func TestDecodeIntent_BadMetadata(t *testing.T) {
	_, err := DecodeIntent([]byte(`{"id":"pi_x","object":"payment_intent","metadata":{"agreement_id":"not-a-uuid"}}`))
	assert.Error(t, err)
}

func TestDecodeAccount(t *testing.T) {
	state, err := DecodeAccount([]byte(`{"id":"acct_1","object":"account","charges_enabled":true,"payouts_enabled":false,"details_submitted":true}`))
	require.NoError(t, err)
	assert.Equal(t, "acct_1", state.ID)
	assert.True(t, state.ChargesEnabled)
	assert.False(t, state.PayoutsEnabled)
	assert.True(t, state.DetailsSubmitted)
}

func TestIsExternalAccountEvent(t *testing.T) {
	assert.True(t, IsExternalAccountEvent(EventExternalAccountCreated))
	assert.True(t, IsExternalAccountEvent(EventExternalAccountDeleted))
	assert.False(t, IsExternalAccountEvent(EventAccountUpdated))
}
