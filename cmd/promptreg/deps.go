package main

import (
	"time"

	"github.com/stellarlinkco/prompt-registry/internal/config"
	"github.com/stellarlinkco/prompt-registry/internal/store"
)

var (
	loadConfig = config.Load
	openStore  = store.Open
	timeNow    = time.Now
)
