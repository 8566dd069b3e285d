package main

import (
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

var connectorFactories = []ConnectorFactory{
	&FTPConnectorFactory{},
	&SFTPConnectorFactory{},
}

// ConnectorOptions carries the settings shared by every connector.
type ConnectorOptions struct {
	Timeout      time.Duration
	KnownHosts   string
	InsecureHost bool
	Logger       zerolog.Logger
}

func getConnectorFactory(u *url.URL) ConnectorFactory {
	for _, factory := range connectorFactories {
		if factory.Accept(u) {
			return factory
		}
	}
	return nil
}
