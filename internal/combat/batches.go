package combat

import (
	"fmt"
	"sort"

	"gosva/domain/core"

	"gonum.org/v1/gonum/mat"
)

type batchGroup struct {
	label   string
	samples []int
}

// groupBatches returns one group per distinct label in sorted label order.
func groupBatches(labels []string) []batchGroup {
	index := map[string]int{}
	var groups []batchGroup
	for j, l := range labels {
		g, ok := index[l]
		if !ok {
			g = len(groups)
			index[l] = g
			groups = append(groups, batchGroup{label: l})
		}
		groups[g].samples = append(groups[g].samples, j)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].label < groups[b].label })
	return groups
}

func checkBatchSizes(groups []batchGroup) error {
	for _, g := range groups {
		if len(g.samples) < 2 {
			return core.NewDegenerateBatchError(g.label, len(g.samples))
		}
	}
	return nil
}

func referenceIndex(groups []batchGroup, ref string) (int, error) {
	if ref == "" {
		return -1, nil
	}
	for i, g := range groups {
		if g.label == ref {
			return i, nil
		}
	}
	return -1, core.NewInvalidInputError("reference batch", fmt.Sprintf("%q is not one of the batch labels", ref))
}

// batchDesign is the samples × batches indicator matrix. The reference
// column, when there is one, is all ones and plays the intercept.
func batchDesign(n int, groups []batchGroup, ref int) *mat.Dense {
	d := mat.NewDense(n, len(groups), nil)
	for b, g := range groups {
		if b == ref {
			for j := 0; j < n; j++ {
				d.Set(j, b, 1)
			}
			continue
		}
		for _, j := range g.samples {
			d.Set(j, b, 1)
		}
	}
	return d
}

// covariates drops intercept columns from a user design; nil when nothing
// remains.
func covariates(design mat.Matrix) *mat.Dense {
	if design == nil {
		return nil
	}
	if d, ok := design.(*mat.Dense); ok && d == nil {
		return nil
	}
	n, p := design.Dims()
	var keep []int
	for c := 0; c < p; c++ {
		constant := true
		for j := 0; j < n; j++ {
			if design.At(j, c) != 1 {
				constant = false
				break
			}
		}
		if !constant {
			keep = append(keep, c)
		}
	}
	if len(keep) == 0 {
		return nil
	}
	out := mat.NewDense(n, len(keep), nil)
	for k, c := range keep {
		for j := 0; j < n; j++ {
			out.Set(j, k, design.At(j, c))
		}
	}
	return out
}

// constantWithinBatch marks features whose values do not vary inside at
// least one batch.
func constantWithinBatch(x mat.Matrix, groups []batchGroup) []bool {
	m, _ := x.Dims()
	out := make([]bool, m)
	for i := 0; i < m; i++ {
		for _, g := range groups {
			first := x.At(i, g.samples[0])
			same := true
			for _, j := range g.samples[1:] {
				if x.At(i, j) != first {
					same = false
					break
				}
			}
			if same {
				out[i] = true
				break
			}
		}
	}
	return out
}
