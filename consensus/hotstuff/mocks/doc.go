// Package mocks holds testify mocks of the consensus/hotstuff interfaces.
package mocks

//go:generate mockery --dir=.. --name=ChainDb --case=underscore --output=. --outpkg=mocks
//go:generate mockery --dir=.. --name=OutboundService --case=underscore --output=. --outpkg=mocks
//go:generate mockery --dir=.. --name=SigningService --case=underscore --output=. --outpkg=mocks
//go:generate mockery --dir=.. --name=CommitteeManager --case=underscore --output=. --outpkg=mocks
