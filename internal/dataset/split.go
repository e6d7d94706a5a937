package dataset

import (
	"fmt"
	"math/rand"
	"sort"
)

// StratifiedGroupSplit делит строки индекса на train и val так, чтобы
// строки одной группы (groupField) целиком попадали в одну часть,
// а доли значений labelField в частях были близки к исходным.
// Разбиение детерминировано при фиксированном rng.
func StratifiedGroupSplit(rows []ImageRow, labelField, groupField string, valFraction float64, rng *rand.Rand) (train, val []int, err error) {
	if valFraction <= 0 || valFraction >= 1 {
		return nil, nil, fmt.Errorf("val fraction %v out of (0, 1)", valFraction)
	}

	type group struct {
		name string
		rows []int
	}
	byName := map[string]*group{}
	labelOf := map[string]string{}
	for i, row := range rows {
		gname, ok := row.Fields[groupField]
		if !ok {
			return nil, nil, fmt.Errorf("row %d: missing group field %q", i, groupField)
		}
		label, ok := row.Fields[labelField]
		if !ok {
			return nil, nil, fmt.Errorf("row %d: missing label field %q", i, labelField)
		}
		g := byName[gname]
		if g == nil {
			g = &group{name: gname}
			byName[gname] = g
			// метка группы — метка первой её строки
			labelOf[gname] = label
		}
		g.rows = append(g.rows, i)
	}

	// группы раскладываются по стратам, внутри страты — детерминированный
	// порядок плюс перемешивание заданным генератором
	strata := map[string][]*group{}
	for _, g := range byName {
		label := labelOf[g.name]
		strata[label] = append(strata[label], g)
	}
	labels := make([]string, 0, len(strata))
	for label := range strata {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		groups := strata[label]
		sort.Slice(groups, func(i, j int) bool { return groups[i].name < groups[j].name })
		rng.Shuffle(len(groups), func(i, j int) { groups[i], groups[j] = groups[j], groups[i] })

		total := 0
		for _, g := range groups {
			total += len(g.rows)
		}
		want := valFraction * float64(total)
		got := 0
		for _, g := range groups {
			if float64(got) < want {
				val = append(val, g.rows...)
				got += len(g.rows)
			} else {
				train = append(train, g.rows...)
			}
		}
	}

	if len(train) == 0 || len(val) == 0 {
		return nil, nil, fmt.Errorf("degenerate split: %d train, %d val rows", len(train), len(val))
	}
	sort.Ints(train)
	sort.Ints(val)
	return train, val, nil
}
