package config

type WorkerKeyStruct struct {
	GameScoresQueue string
}

var WorkerKey = &WorkerKeyStruct{
	GameScoresQueue: "game_scores_queue",
}
