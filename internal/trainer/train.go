package trainer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
	"github.com/saugatapaul1010/Vision-OPs/internal/loader"
	"github.com/saugatapaul1010/Vision-OPs/internal/logger"
)

// TrainOneEpoch прогоняет одну тренировочную эпоху и возвращает средние лоссы.
// Нечисловой суммарный лосс батча прерывает эпоху с ошибкой.
func TrainOneEpoch(ctx context.Context, backend port.TrainingBackend, ld *loader.Loader) (entity.TrainResult, error) {
	sums := map[string]float64{}
	var totalSum float64
	batches := 0

	err := ld.Iterate(func(b loader.Batch) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		losses, err := backend.TrainStep(ctx, b.Images, b.Targets)
		if err != nil {
			return err
		}
		var total float64
		for key, v := range losses {
			sums[key] += v
			total += v
		}
		if !entity.IsFinite(total) {
			return fmt.Errorf("non-finite batch loss %v, stopping the epoch", total)
		}
		totalSum += total
		batches++
		return nil
	})
	if err != nil {
		return entity.TrainResult{}, err
	}
	if batches == 0 {
		return entity.TrainResult{}, fmt.Errorf("empty training epoch")
	}

	result := entity.TrainResult{
		EpochLoss: totalSum / float64(batches),
		Losses:    make(map[string]float64, len(sums)),
	}
	for key, sum := range sums {
		result.Losses[key] = sum / float64(batches)
	}
	logger.L().Debug("train epoch finished",
		zap.Int("batches", batches),
		zap.Float64("epoch_loss", result.EpochLoss))
	return result, nil
}
