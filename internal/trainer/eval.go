package trainer

import (
	"context"
	"fmt"
	"sort"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
	"github.com/saugatapaul1010/Vision-OPs/internal/loader"
)

// EvalOneEpoch прогоняет датасет через инференс и считает качество детекции.
// Предсказание засчитывается, если нашлась ещё не сопоставленная истинная
// рамка с IoU не ниже порога; каждая истинная рамка сопоставляется один раз.
func EvalOneEpoch(ctx context.Context, backend port.TrainingBackend, ld *loader.Loader, iouThreshold, beta float64) (entity.EvalResult, error) {
	if iouThreshold <= 0 || iouThreshold > 1 {
		return entity.EvalResult{}, fmt.Errorf("iou threshold %v out of (0, 1]", iouThreshold)
	}

	var tp, fp, fn int
	var results []entity.Prediction

	err := ld.Iterate(func(b loader.Batch) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		preds, err := backend.Predict(ctx, b.Images)
		if err != nil {
			return err
		}
		if len(preds) != len(b.Targets) {
			return fmt.Errorf("backend returned %d predictions for %d images", len(preds), len(b.Images))
		}
		for i, pred := range preds {
			sTP, sFP, sFN := matchDetections(pred, b.Targets[i], iouThreshold)
			tp += sTP
			fp += sFP
			fn += sFN
			results = append(results, pred)
		}
		return nil
	})
	if err != nil {
		return entity.EvalResult{}, err
	}

	precision := entity.SafeDiv(float64(tp), float64(tp+fp))
	recall := entity.SafeDiv(float64(tp), float64(tp+fn))
	return entity.EvalResult{
		Scores: map[string]float64{
			entity.MetricPrecision: precision,
			entity.MetricRecall:    recall,
			entity.MetricFBeta:     entity.FBeta(precision, recall, beta),
		},
		Results: results,
	}, nil
}

// matchDetections жадно сопоставляет предсказания истинным рамкам
// в порядке убывания уверенности.
func matchDetections(pred entity.Prediction, target entity.Target, iouThreshold float64) (tp, fp, fn int) {
	order := make([]int, len(pred.Boxes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return pred.Scores[order[i]] > pred.Scores[order[j]]
	})

	matched := make([]bool, len(target.Boxes))
	for _, pi := range order {
		best := -1
		bestIoU := 0.0
		for gi, gt := range target.Boxes {
			if matched[gi] {
				continue
			}
			if iou := pred.Boxes[pi].IoU(gt); iou >= iouThreshold && iou > bestIoU {
				best, bestIoU = gi, iou
			}
		}
		if best >= 0 {
			matched[best] = true
			tp++
		} else {
			fp++
		}
	}
	for _, m := range matched {
		if !m {
			fn++
		}
	}
	return tp, fp, fn
}
