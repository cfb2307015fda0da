package betsize

// Coefficients of a degree-3 bivariate polynomial fitted offline against
// historical fills: x is the quoted profit ratio minus 1, y is the expected
// time-to-finality in seconds. Term order is
// 1, x, y, x^2, xy, y^2, x^3, x^2y, xy^2, y^3.
var profitPolyCoeffs = [10]float64{
	3.2249590845866583,
	-0.008487893619997352,
	-8.289355052151508,
	-2.7553679060180372e-05,
	0.018381381764979644,
	6.682066508973032,
	1.136819970260633e-07,
	-1.132177881582365e-05,
	-0.006509158078653439,
	-1.741753472222248,
}

// ProfitProbability estimates the chance a quoted edge survives until
// settlement, from the edge size and the time the trade needs to finalize.
// The estimate clamps to [0, 1].
func ProfitProbability(profitDelta, ttfSeconds float64) float64 {
	x, y := profitDelta, ttfSeconds
	c := profitPolyCoeffs
	p := c[0] +
		c[1]*x + c[2]*y +
		c[3]*x*x + c[4]*x*y + c[5]*y*y +
		c[6]*x*x*x + c[7]*x*x*y + c[8]*x*y*y + c[9]*y*y*y
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
