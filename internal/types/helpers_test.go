package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNillableHelpers(t *testing.T) {
	assert.Nil(t, ToNillableString(""))
	assert.Equal(t, "x", *ToNillableString("x"))

	assert.Nil(t, ToNillableTime(time.Time{}))
	now := time.Now()
	assert.Equal(t, now, *ToNillableTime(now))

	assert.Equal(t, "", FromNillableString(nil))
	assert.Equal(t, "x", FromNillableString(ToNillableString("x")))

	assert.True(t, FromNillableTime(nil).IsZero())
	assert.Equal(t, now, FromNillableTime(&now))
}
