package logging

import (
	"fmt"

	"go.uber.org/zap"
)

type impl struct {
	name string
	*zap.SugaredLogger
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return &impl{name: newName, SugaredLogger: imp.SugaredLogger.Named(subname)}
}
