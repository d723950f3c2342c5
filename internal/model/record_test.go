package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordID_Deterministic(t *testing.T) {
	row := validRow()
	assert.Equal(t, RecordID(row), RecordID(row))
	assert.Len(t, RecordID(row), 32)
}

func TestRecordID_CaseInsensitiveKey(t *testing.T) {
	a := validRow()
	b := validRow()
	b.Brand = "LYNX"
	b.ModelCode = "ltta"
	assert.Equal(t, RecordID(a), RecordID(b))
}

func TestRecordID_MarketSeparatesRecords(t *testing.T) {
	fi := validRow()
	se := validRow()
	se.Market = "SE"
	assert.NotEqual(t, RecordID(fi), RecordID(se))
}

func TestOptionModifierRecord_Key(t *testing.T) {
	a := &OptionModifierRecord{Brand: "Lynx", Name: "Black Edition", ModelYear: 2026}
	b := &OptionModifierRecord{Brand: "LYNX", Name: "black edition", ModelYear: 2026}
	assert.Equal(t, a.Key(), b.Key())

	c := &OptionModifierRecord{Brand: "Lynx", Name: "Black Edition", ModelYear: 2025}
	assert.NotEqual(t, a.Key(), c.Key())
}
