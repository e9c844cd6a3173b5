package usecase

import (
	"context"
	"crypto/md5"
	"fmt"
	"strconv"
	"time"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/utils"
)

type IUserUsecase interface {
	Login(ctx context.Context, req model.ReqLogin) dto.Res
}

type userUsecase struct {
	userRepo  repository.IUser
	secretKey string
}

func NewUserUsecase(userRepo repository.IUser, secretKey string) IUserUsecase {
	return &userUsecase{userRepo: userRepo, secretKey: secretKey}
}

func (u *userUsecase) Login(ctx context.Context, req model.ReqLogin) dto.Res {
	var res dto.Res
	res.ResponseCode = "401"
	res.ResponseMessage = "Unauthorized"

	user, err := u.userRepo.GetByUserName(ctx, req.UserName)
	if err != nil {
		logger.GetLogger().WithField("user_name", req.UserName).Info("Login attempt for unknown user")
		return res
	}
	hashed := fmt.Sprintf("%x", md5.Sum([]byte(req.Password)))
	if user.Password != hashed {
		return res
	}

	now := utils.GetCurrentTime()
	token, err := utils.GenerateToken(map[string]interface{}{
		"user_name": user.UserName,
		"iss":       strconv.FormatInt(user.ID, 10),
		"iat":       now.Unix(),
		"exp":       now.Add(24 * time.Hour).Unix(),
	}, u.secretKey)
	if err != nil {
		res.ResponseCode = "500"
		res.ResponseMessage = "General Error"
		return res
	}

	res.ResponseCode = "00"
	res.ResponseMessage = "Success"
	res.Data = map[string]interface{}{"token": token}
	return res
}
