// Package config provides configuration management for AutoFinance.
// This file centralizes all port constants to avoid duplication and ensure consistency.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Service Ports
//
// Every service exposes POST /mcp plus /health and /metrics on its port.
// Override with AUTOFINANCE_PORT_<SERVICE_NAME> (dashes become underscores).
const (
	// PortMarket is the port for the market data service.
	PortMarket = 9001

	// PortRisk is the port for the risk policy service.
	PortRisk = 9002

	// PortExecution is the port for the execution (portfolio engine) service.
	PortExecution = 9003

	// PortCompliance is the port for the compliance audit service.
	PortCompliance = 9004

	// PortTechnical is the port for the technical analysis service.
	PortTechnical = 9005

	// PortFundamental is the port for the fundamental analysis service.
	PortFundamental = 9006

	// PortMacro is the port for the macro analysis service.
	PortMacro = 9007

	// PortNews is the port for the news sentiment service.
	PortNews = 9008

	// PortPortfolioAnalytics is the port for the portfolio analytics service.
	PortPortfolioAnalytics = 9009

	// PortVolatility is the port for the volatility analysis service.
	PortVolatility = 9010

	// PortAlertEngine is the port for the standalone alert registry service.
	PortAlertEngine = 9011

	// PortSimulation is the port for the simulation engine service.
	PortSimulation = 9012

	// PortNotification is the port for the notification gateway service.
	PortNotification = 9013

	// PortTraderSupervisor is the port for the trade pipeline supervisor.
	PortTraderSupervisor = 9014

	// PortInvestorSupervisor is the port for the investment review supervisor.
	PortInvestorSupervisor = 9015
)

// Infrastructure Service Ports
const (
	// RedisPort is the default port for Redis.
	RedisPort = 6379

	// NATSPort is the default port for NATS messaging.
	NATSPort = 4222

	// PostgresPort is the default port for PostgreSQL.
	PostgresPort = 5432

	// VaultPort is the default port for HashiCorp Vault.
	VaultPort = 8200
)

// ServicePorts maps service names to their default ports. The names double as
// the argv[1] selector accepted by the autofinance binary.
var ServicePorts = map[string]int{
	"market":              PortMarket,
	"risk":                PortRisk,
	"execution":           PortExecution,
	"compliance":          PortCompliance,
	"technical":           PortTechnical,
	"fundamental":         PortFundamental,
	"macro":               PortMacro,
	"news":                PortNews,
	"portfolio-analytics": PortPortfolioAnalytics,
	"volatility":          PortVolatility,
	"alert-engine":        PortAlertEngine,
	"simulation":          PortSimulation,
	"notification":        PortNotification,
	"trader-supervisor":   PortTraderSupervisor,
	"investor-supervisor": PortInvestorSupervisor,
}

// GetServicePort returns the port for a given service name, honoring the
// AUTOFINANCE_PORT_<NAME> environment override. Returns 0 if the service is
// not known.
func GetServicePort(serviceName string) int {
	port, ok := ServicePorts[serviceName]
	if !ok {
		return 0
	}
	envKey := "AUTOFINANCE_PORT_" + strings.ToUpper(strings.ReplaceAll(serviceName, "-", "_"))
	if raw := os.Getenv(envKey); raw != "" {
		if override, err := strconv.Atoi(raw); err == nil && override > 0 {
			return override
		}
	}
	return port
}

// ServiceURL returns the MCP endpoint URL for a service on the given host.
func ServiceURL(host, serviceName string) string {
	return fmt.Sprintf("http://%s:%d/mcp", host, GetServicePort(serviceName))
}

// ServiceNames returns all known service names in a stable order.
func ServiceNames() []string {
	return []string{
		"market",
		"risk",
		"execution",
		"compliance",
		"technical",
		"fundamental",
		"macro",
		"news",
		"portfolio-analytics",
		"volatility",
		"alert-engine",
		"simulation",
		"notification",
		"trader-supervisor",
		"investor-supervisor",
	}
}
