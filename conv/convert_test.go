package conv_test

import (
	"strings"
	"testing"

	"github.com/ericlagergren/decimal"
	"github.com/go-playground/assert/v2"
	. "github.com/smartystreets/goconvey/convey"
	"gitlab.com/tng-miniapp/ledger_api/conv"
)

func BenchmarkParseUnits(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = conv.ParseUnits("101000101332323130000")
	}
}

func TestParseUnits(t *testing.T) {
	Convey("Given a string representation of an amount in minimal units", t, func() {
		Convey("I should be able to parse integral values", func() {
			amount, err := conv.ParseUnits("1000")
			So(err, ShouldBeNil)
			So(conv.FormatUnits(amount), ShouldEqual, "1000")

			amount, err = conv.ParseUnits(" 1e3 ")
			So(err, ShouldBeNil)
			So(conv.FormatUnits(amount), ShouldEqual, "1000")

			amount, err = conv.ParseUnits("340282366920938463463374607431768211456000")
			So(err, ShouldBeNil)
			So(conv.FormatUnits(amount), ShouldEqual, "340282366920938463463374607431768211456000")
		})

		Convey("Fractional and malformed values should be rejected", func() {
			for _, input := range []string{"", "1.5", "abc", "NaN", "Inf", "12q"} {
				_, err := conv.ParseUnits(input)
				So(err, ShouldEqual, conv.ErrInvalidUnits)
			}
		})

		Convey("Values wider than the numeric(78,0) columns should be rejected", func() {
			widest := strings.Repeat("9", conv.MaxUnitsDigits)
			amount, err := conv.ParseUnits(widest)
			So(err, ShouldBeNil)
			So(conv.FormatUnits(amount), ShouldEqual, widest)
			So(conv.IsPositiveUnits(amount), ShouldBeTrue)

			amount, err = conv.ParseUnits("1e77")
			So(err, ShouldBeNil)
			So(conv.IsPositiveUnits(amount), ShouldBeTrue)

			for _, input := range []string{"1" + widest, "1e78", "1e99", "1e100", "1e1000", "1" + strings.Repeat("0", 120)} {
				amount, err := conv.ParseUnits(input)
				So(err, ShouldEqual, conv.ErrInvalidUnits)
				So(amount, ShouldBeNil)
			}

			huge, _ := conv.NewUnits().SetString("1e99")
			So(conv.IsPositiveUnits(huge), ShouldBeFalse)
		})
	})
}

func TestUnitsArithmeticKeepsPrecision(t *testing.T) {
	Convey("Adding large amounts should not round", t, func() {
		a, _ := conv.ParseUnits("99999999999999999999999999999999999999")
		b := conv.UnitsFromInt64(1)
		sum := conv.NewUnits().Add(a, b)
		So(conv.FormatUnits(sum), ShouldEqual, "100000000000000000000000000000000000000")

		diff := conv.NewUnits().Sub(sum, a)
		So(diff.Cmp(b), ShouldEqual, 0)
	})
}

func TestIsPositiveUnits(t *testing.T) {
	tests := []struct {
		name string
		arg  *decimal.Big
		want bool
	}{
		{name: "positive integer", arg: conv.UnitsFromInt64(10), want: true},
		{name: "zero", arg: conv.UnitsFromInt64(0), want: false},
		{name: "negative", arg: conv.UnitsFromInt64(-3), want: false},
		{name: "fraction", arg: new(decimal.Big).SetMantScale(15, 1), want: false},
		{name: "nan", arg: conv.NewUnits().SetNaN(false), want: false},
		{name: "nil", arg: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, conv.IsPositiveUnits(tt.arg))
		})
	}
}

func TestEstimateValue(t *testing.T) {
	Convey("Given 1.5 TNG in minimal units with 9 decimals", t, func() {
		units := conv.UnitsFromInt64(1500000000)
		price := new(decimal.Big).SetMantScale(25, 1)

		Convey("The value at 2.5 USD should be 3.75", func() {
			value := conv.EstimateValue(units, 9, price)
			expected := new(decimal.Big).SetMantScale(375, 2)
			So(value.Cmp(expected), ShouldEqual, 0)
		})

		Convey("Whole tokens should be derived from the decimals", func() {
			tokens := conv.FromUnits(units, 9)
			So(tokens.Cmp(new(decimal.Big).SetMantScale(15, 1)), ShouldEqual, 0)
		})
	})
}

func TestRoundToPrecision(t *testing.T) {
	value := new(decimal.Big).SetMantScale(123456789123, 10)
	assert.Equal(t, conv.RoundToPrecision(value).String(), "12.34567891")
}
