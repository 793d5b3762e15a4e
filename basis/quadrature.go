package basis

import (
	"fmt"
	"math"

	"github.com/notargets/MatFree/types"
	"gonum.org/v1/gonum/mat"
)

// QuadMode selects the 1D quadrature rule of a tensor-product basis
type QuadMode int

const (
	QuadGauss QuadMode = iota
	QuadGaussLobatto
)

func (q QuadMode) String() string {
	if q == QuadGaussLobatto {
		return "gauss-lobatto"
	}
	return "gauss"
}

// GaussQuadrature returns the Q-point Gauss-Legendre rule on [-1, 1]
func GaussQuadrature(Q int) (x, w []float64, err error) {
	if Q < 1 {
		return nil, nil, fmt.Errorf("%w: Gauss rule needs at least 1 point, got %d",
			types.ErrConfiguration, Q)
	}
	return jacobiGQ(0, 0, Q-1)
}

// LobattoQuadrature returns the Q-point Gauss-Lobatto-Legendre rule on
// [-1, 1]. The end points are included.
func LobattoQuadrature(Q int) (x, w []float64, err error) {
	if Q < 2 {
		return nil, nil, fmt.Errorf("%w: Gauss-Lobatto rule needs at least 2 points, got %d",
			types.ErrConfiguration, Q)
	}
	N := Q - 1
	x = make([]float64, Q)
	x[0], x[N] = -1, 1
	if N > 1 {
		// interior points are the zeros of P'_N, i.e. Gauss-Jacobi(1,1) points
		xint, _, err := jacobiGQ(1, 1, N-2)
		if err != nil {
			return nil, nil, err
		}
		copy(x[1:N], xint)
	}
	w = make([]float64, Q)
	for i, xi := range x {
		p, _ := legendre(N, xi)
		w[i] = 2 / (float64(N*(N+1)) * p * p)
	}
	return x, w, nil
}

// jacobiGQ computes the N+1 point Gauss-Jacobi rule with the Golub-Welsch
// algorithm: the nodes are the eigenvalues of the symmetric tridiagonal
// Jacobi matrix, the weights come from the first row of its eigenvectors.
func jacobiGQ(alpha, beta float64, N int) (x, w []float64, err error) {
	if N == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2.)}, []float64{gamma0(alpha, beta)}, nil
	}

	h1 := make([]float64, N+1)
	for i := range h1 {
		h1[i] = 2*float64(i) + alpha + beta
	}

	d0 := make([]float64, N+1)
	fac := beta*beta - alpha*alpha
	for i, h := range h1 {
		d0[i] = fac / (h * (h + 2.))
	}
	// 0/0 when alpha+beta == 0
	if alpha+beta < 1.e-15 {
		d0[0] = 0.
	}

	d1 := make([]float64, N)
	for i := range d1 {
		ip1 := float64(i + 1)
		h := h1[i]
		d1[i] = 2.0 / (h + 2.0) * math.Sqrt(
			ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(h+1)/(h+3),
		)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(symTriDiagonal(d0, d1), true); !ok {
		return nil, nil, fmt.Errorf("%w: Jacobi matrix eigen decomposition failed (N=%d)",
			types.ErrCompute, N)
	}
	x = eig.Values(nil)

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	g := gamma0(alpha, beta)
	w = make([]float64, N+1)
	for i := range w {
		v := vecs.At(0, i)
		w[i] = v * v * g
	}
	return x, w, nil
}

// gamma0 is the integral of the Jacobi weight (1-x)^alpha (1+x)^beta on [-1, 1]
func gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	return math.Gamma(alpha+1.) * math.Gamma(beta+1.) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

func symTriDiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		s.SetSym(i, i, d0[i])
		if i < n-1 {
			s.SetSym(i, i+1, d1[i])
		}
	}
	return s
}

// legendre evaluates the Legendre polynomial P_n and its derivative at x
func legendre(n int, x float64) (p, dp float64) {
	p0, p1 := 1.0, x
	d0, d1 := 0.0, 1.0
	if n == 0 {
		return p0, d0
	}
	for k := 1; k < n; k++ {
		fk := float64(k)
		p2 := ((2*fk+1)*x*p1 - fk*p0) / (fk + 1)
		d2 := d0 + (2*fk+1)*p1
		p0, p1 = p1, p2
		d0, d1 = d1, d2
	}
	return p1, d1
}

// lagrange1D evaluates the Lagrange polynomial of node p over nodes at x,
// together with its derivative
func lagrange1D(nodes []float64, p int, x float64) (u, dudx float64) {
	u = 1.0
	xp := nodes[p]
	for i, x0 := range nodes {
		if i == p {
			continue
		}
		dudx = u/(xp-x0) + (x-x0)/(xp-x0)*dudx
		u *= (x - x0) / (xp - x0)
	}
	return u, dudx
}
