package app

import (
	"errors"
	"time"
)

const healthCheckTimeout = 2 * time.Second

var errBrokerUnavailable = errors.New("rabbitmq connection is closed")
