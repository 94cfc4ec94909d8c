package keys

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"papertrader/src/database"
	"papertrader/src/model"
	"papertrader/src/repository"
	"papertrader/src/security"
)

type brokerAccountLinker interface {
	Link(ctx context.Context, acc *model.BrokerAccount) error
}

var newLinker = func() brokerAccountLinker {
	return repository.NewBrokerAccountRepository().WithDB(database.MainDB)
}

// Link stores encrypted broker credentials for userID.
func Link(ctx context.Context, userID, key, secret, baseURL string) error {
	if userID == "" || key == "" || secret == "" {
		return errors.New("user, key and secret are required")
	}

	encryptKey, err := security.EncryptString(key)
	if err != nil {
		logrus.WithError(err).Error("Failed to encrypt key")
		return err
	}
	encryptSecret, err := security.EncryptString(secret)
	if err != nil {
		logrus.WithError(err).Error("Failed to encrypt secret")
		return err
	}

	acc := &model.BrokerAccount{
		UserID:        userID,
		APIKeyHash:    encryptKey,
		APISecretHash: encryptSecret,
		BaseURL:       baseURL,
		Enabled:       true,
	}
	if err := newLinker().Link(ctx, acc); err != nil {
		logrus.WithError(err).Error("Failed to link broker account")
		return err
	}

	logrus.WithField("user_id", userID).Info("broker account linked")
	return nil
}
