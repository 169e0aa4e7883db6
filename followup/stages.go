package followup

import "time"

// stageValues is the authoritative, non-contiguous stage sequence: each
// entry is both the stage number stored on the job and the key into
// stageTemplates. Matches follow_up_system's stage_sequence exactly.
var stageValues = []int{0, 1, 2, 4, 7, 10, 14, 18, 26, 36, 46, 56, 66}

// stageOffsets[i] is the delay since activation (stage 0) at which
// stageValues[i] is due. Stage 0 fires at 1 hour rather than 0 days;
// every stage after that follows the day-based cadence.
var stageOffsets = []time.Duration{
	1 * time.Hour,
	24 * time.Hour,
	48 * time.Hour,
	96 * time.Hour,
	168 * time.Hour,
	240 * time.Hour,
	336 * time.Hour,
	432 * time.Hour,
	624 * time.Hour,
	864 * time.Hour,
	1104 * time.Hour,
	1344 * time.Hour,
	1584 * time.Hour,
}

// maintenanceInterval is how often the recurring maintenance stage
// (models.MaintenanceStage) re-fires once the scripted cadence ends.
const maintenanceInterval = 15 * 24 * time.Hour

const lastScriptedStage = 66

// nextStage returns the stage to arm after `current` fires
// successfully, and the delay from now until it's due.
func nextStage(current int) (stage int, delay time.Duration) {
	if current == 999 {
		return 999, maintenanceInterval
	}
	idx := stageIndex(current)
	if idx == -1 || idx == len(stageValues)-1 {
		return 999, maintenanceInterval
	}
	return stageValues[idx+1], stageOffsets[idx+1] - stageOffsets[idx]
}

func stageIndex(stage int) int {
	for i, v := range stageValues {
		if v == stage {
			return i
		}
	}
	return -1
}
