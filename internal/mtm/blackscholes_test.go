package mtm

import "testing"

func closeTo(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestBlackScholesZeroAtExpiry(t *testing.T) {
	g := BlackScholesGreeks(100, 100, 0, 0.05, 0.25, true)
	if g != (Greeks{}) {
		t.Errorf("expected zero Greeks at expiry, got %+v", g)
	}
}

func TestBlackScholesATMCallDeltaNearHalf(t *testing.T) {
	g := BlackScholesGreeks(100, 100, 0.5, 0.05, 0.25, true)
	if g.Delta < 0.5 || g.Delta > 0.7 {
		t.Errorf("expected an at-the-money call delta near 0.5-0.7, got %v", g.Delta)
	}
	if g.Gamma <= 0 {
		t.Errorf("expected positive gamma, got %v", g.Gamma)
	}
	if g.Vega <= 0 {
		t.Errorf("expected positive vega, got %v", g.Vega)
	}
}

func TestBlackScholesPutCallDeltaRelation(t *testing.T) {
	call := BlackScholesGreeks(100, 100, 0.5, 0.05, 0.25, true)
	put := BlackScholesGreeks(100, 100, 0.5, 0.05, 0.25, false)
	if !closeTo(call.Delta-put.Delta, 1.0, 1e-6) {
		t.Errorf("expected call delta - put delta = 1, got %v", call.Delta-put.Delta)
	}
	if !closeTo(call.Gamma, put.Gamma, 1e-9) {
		t.Errorf("expected call and put gamma to match, got call=%v put=%v", call.Gamma, put.Gamma)
	}
}

func TestBlackScholesDeepITMCallDeltaNearOne(t *testing.T) {
	g := BlackScholesGreeks(200, 100, 0.25, 0.05, 0.2, true)
	if g.Delta < 0.95 {
		t.Errorf("expected a deep ITM call delta near 1, got %v", g.Delta)
	}
}

func TestBlackScholesDeepOTMPutDeltaNearZero(t *testing.T) {
	g := BlackScholesGreeks(200, 100, 0.25, 0.05, 0.2, false)
	if g.Delta < -0.05 {
		t.Errorf("expected a deep OTM put delta near 0, got %v", g.Delta)
	}
}
